package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ikas.GO/config"
	"ikas.GO/ikas"
)

// fakeStore emulates the admin GraphQL endpoint and the image upload
// endpoint with just enough state for full sync runs.
type fakeStore struct {
	t *testing.T

	products []*storeProduct
	nextID   int

	channelUpdates    int
	priceBySKU        map[string]float64
	priceErrors       []map[string]any
	failCreateFor     string
	failAddVariantFor string
	noFitGuideAttr    bool

	graphql *httptest.Server
	upload  *httptest.Server
}

type storeProduct struct {
	id          string
	name        string
	description string
	taxonomy    string
	categories  []string
	tags        []string
	attributes  []map[string]any
	variants    []*storeVariant
}

type storeVariant struct {
	id     string
	sku    string
	values []map[string]any
	attrs  []map[string]any
	images int
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	s := &fakeStore{t: t, priceBySKU: make(map[string]float64)}
	s.graphql = httptest.NewServer(http.HandlerFunc(s.handleGraphQL))
	s.upload = httptest.NewServer(http.HandlerFunc(s.handleUpload))
	t.Cleanup(s.graphql.Close)
	t.Cleanup(s.upload.Close)
	return s
}

func (s *fakeStore) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *fakeStore) findByID(id string) *storeProduct {
	for _, p := range s.products {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (s *fakeStore) findVariant(id string) *storeVariant {
	for _, p := range s.products {
		for _, v := range p.variants {
			if v.id == id {
				return v
			}
		}
	}
	return nil
}

func (s *fakeStore) productJSON(p *storeProduct) map[string]any {
	named := func(names []string) []map[string]any {
		out := make([]map[string]any, 0, len(names))
		for i, n := range names {
			out = append(out, map[string]any{"id": fmt.Sprintf("n-%d", i), "name": n})
		}
		return out
	}
	variants := make([]map[string]any, 0, len(p.variants))
	for _, v := range p.variants {
		images := make([]map[string]any, 0, v.images)
		for i := 0; i < v.images; i++ {
			images = append(images, map[string]any{"imageId": fmt.Sprintf("img-%d", i), "isMain": i == 0, "order": i})
		}
		variants = append(variants, map[string]any{
			"id": v.id, "sku": v.sku,
			"attributes":    v.attrs,
			"images":        images,
			"variantValues": v.values,
			"prices":        []any{},
		})
	}
	return map[string]any{
		"id": p.id, "name": p.name, "description": p.description,
		"googleTaxonomyId": p.taxonomy,
		"brand":            nil,
		"categories":       named(p.categories),
		"tags":             named(p.tags),
		"attributes":       p.attributes,
		"variants":         variants,
	}
}

func respond(w http.ResponseWriter, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func (s *fakeStore) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.t.Errorf("decode graphql request: %v", err)
		return
	}
	input, _ := req.Variables["input"].(map[string]any)

	switch {
	case strings.Contains(req.Query, "listSalesChannel"):
		respond(w, map[string]any{"listSalesChannel": []map[string]any{
			{"id": "ch-web", "name": "Web Mağaza", "type": "STOREFRONT"},
			{"id": "ch-ty", "name": "Trendyol Entegrasyonu", "type": "MARKETPLACE"},
		}})

	case strings.Contains(req.Query, "listProductAttribute"):
		attrs := []map[string]any{{"id": "attr-other", "name": "Malzeme", "type": "TEXT"}}
		if !s.noFitGuideAttr {
			attrs = append(attrs, map[string]any{"id": "attr-fit", "name": "Ölçü Rehberi", "type": "HTML"})
		}
		respond(w, map[string]any{"listProductAttribute": attrs})

	case strings.Contains(req.Query, "listProduct"):
		search, _ := req.Variables["search"].(string)
		var hits []map[string]any
		for _, p := range s.products {
			if strings.Contains(strings.ToLower(p.name), strings.ToLower(search)) {
				hits = append(hits, s.productJSON(p))
			}
		}
		respond(w, map[string]any{"listProduct": map[string]any{"data": hits}})

	case strings.Contains(req.Query, "createProduct"):
		name, _ := input["name"].(string)
		if s.failCreateFor != "" && strings.Contains(name, s.failCreateFor) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"errors":[{"message":"variant type mismatch"}]}`)
			return
		}
		p := &storeProduct{id: s.newID("p"), name: name}
		rawVariants, _ := input["variants"].([]any)
		for _, rv := range rawVariants {
			vm, _ := rv.(map[string]any)
			v := &storeVariant{id: s.newID("v")}
			v.sku, _ = vm["sku"].(string)
			if values, ok := vm["variantValues"].([]any); ok {
				for _, val := range values {
					v.values = append(v.values, val.(map[string]any))
				}
			}
			p.variants = append(p.variants, v)
		}
		s.products = append(s.products, p)
		respond(w, map[string]any{"createProduct": s.productJSON(p)})

	case strings.Contains(req.Query, "updateVariantPrices"):
		wrapper, _ := input["variantPriceInputs"].([]any)
		for _, raw := range wrapper {
			row, _ := raw.(map[string]any)
			variantID, _ := row["variantId"].(string)
			price, _ := row["price"].(map[string]any)
			sell, _ := price["sellPrice"].(float64)
			if v := s.findVariant(variantID); v != nil {
				s.priceBySKU[v.sku] = sell
			}
		}
		errs := s.priceErrors
		if errs == nil {
			errs = []map[string]any{}
		}
		respond(w, map[string]any{"updateVariantPrices": map[string]any{"errors": errs}})

	case strings.Contains(req.Query, "addVariantToProduct"):
		productID, _ := input["productId"].(string)
		p := s.findByID(productID)
		if p == nil {
			s.t.Errorf("addVariantToProduct: unknown product %q", productID)
			return
		}
		vm, _ := input["variant"].(map[string]any)
		sku, _ := vm["sku"].(string)
		if s.failAddVariantFor != "" && strings.Contains(sku, s.failAddVariantFor) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"errors":[{"message":"variant limit exceeded"}]}`)
			return
		}
		v := &storeVariant{id: s.newID("v"), sku: sku}
		if values, ok := vm["variantValues"].([]any); ok {
			for _, val := range values {
				v.values = append(v.values, val.(map[string]any))
			}
		}
		p.variants = append(p.variants, v)
		respond(w, map[string]any{"addVariantToProduct": s.productJSON(p)})

	case strings.Contains(req.Query, "updateProductAndVariantAttributes"):
		productID, _ := input["productId"].(string)
		p := s.findByID(productID)
		if p == nil {
			s.t.Errorf("updateAttributes: unknown product %q", productID)
			return
		}
		if attrs, ok := input["productAttributes"].([]any); ok {
			for _, raw := range attrs {
				p.attributes = append(p.attributes, raw.(map[string]any))
			}
		}
		if rows, ok := input["variantAttributes"].([]any); ok {
			for _, raw := range rows {
				row, _ := raw.(map[string]any)
				variantID, _ := row["variantId"].(string)
				v := s.findVariant(variantID)
				if v == nil {
					s.t.Errorf("updateAttributes: unknown variant %q", variantID)
					continue
				}
				if attrs, ok := row["attributes"].([]any); ok {
					for _, a := range attrs {
						v.attrs = append(v.attrs, a.(map[string]any))
					}
				}
			}
		}
		respond(w, map[string]any{"updateProductAndVariantAttributes": map[string]any{"id": p.id, "name": p.name, "attributes": p.attributes}})

	case strings.Contains(req.Query, "updateProduct"):
		id, _ := input["id"].(string)
		p := s.findByID(id)
		if p == nil {
			s.t.Errorf("updateProduct: unknown product %q", id)
			return
		}
		if _, ok := input["salesChannels"]; ok {
			s.channelUpdates++
		}
		if desc, ok := input["description"].(string); ok {
			p.description = desc
		}
		if tax, ok := input["googleTaxonomyId"].(string); ok {
			p.taxonomy = tax
		}
		if cats, ok := input["categories"].([]any); ok {
			p.categories = nil
			for _, c := range cats {
				p.categories = append(p.categories, c.(map[string]any)["name"].(string))
			}
		}
		if tags, ok := input["tags"].([]any); ok {
			p.tags = nil
			for _, tag := range tags {
				p.tags = append(p.tags, tag.(map[string]any)["name"].(string))
			}
		}
		respond(w, map[string]any{"updateProduct": s.productJSON(p)})

	default:
		s.t.Errorf("unhandled graphql query: %s", req.Query)
	}
}

func (s *fakeStore) handleUpload(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductImage struct {
			VariantIDs []string `json:"variantIds"`
			Base64     string   `json:"base64"`
		} `json:"productImage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.t.Errorf("decode upload: %v", err)
		return
	}
	if payload.ProductImage.Base64 == "" {
		s.t.Error("upload without image body")
	}
	for _, id := range payload.ProductImage.VariantIDs {
		if v := s.findVariant(id); v != nil {
			v.images++
		}
	}
	w.WriteHeader(http.StatusOK)
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
}

// testCatalog stages one multi-variant and one flat product.
func testCatalog(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "RAYBAN 3025", "COL.12", "a.png"))
	writePNG(t, filepath.Join(root, "RAYBAN 3025", "COL.3", "a.png"))
	writePNG(t, filepath.Join(root, "RAYBAN 3025", "COL.3", "b.png"))
	writePNG(t, filepath.Join(root, "OSSE 2360", "solo.png"))
	return root
}

func testRulesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	content := "Marka,Model,Satış Fiyatı,İndirimli Fiyatı\nRAYBAN,3025,2400,1990\nOSSE,,950,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	return newTestServiceProgress(t, store, nil)
}

func newTestServiceProgress(t *testing.T, store *fakeStore, progress func(ProgressEvent)) *Service {
	t.Helper()
	cfg := &config.Config{
		GoogleTaxonomyID: "178",
		ReportDir:        t.TempDir(),
	}
	client := ikas.NewClient(ikas.ClientOptions{
		Credentials: ikas.Credentials{Token: "test-token"},
		GraphQLURL:  store.graphql.URL,
		UploadURL:   store.upload.URL,
		Logger:      zerolog.Nop(),
	})
	return NewService(client, cfg, zerolog.Nop(), progress)
}

func runSync(t *testing.T, svc *Service, catalog, rules string) *Result {
	t.Helper()
	result, err := svc.Run(context.Background(), Options{
		CatalogRoot: catalog,
		RulesPath:   rules,
		ReportDir:   filepath.Join(t.TempDir(), "reports"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return result
}

func TestServiceRun_CreatesProductsAndUploads(t *testing.T) {
	store := newFakeStore(t)
	catalog := testCatalog(t)
	rules := testRulesFile(t)

	result := runSync(t, newTestService(t, store), catalog, rules)

	sum := result.Summary
	if sum.Total != 2 || sum.Created != 2 || sum.Updated != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.UploadedImages != 4 {
		t.Errorf("uploaded = %d, want 4", sum.UploadedImages)
	}
	if sum.VariantFailures != 0 {
		t.Errorf("variant failures = %d", sum.VariantFailures)
	}
	if result.ReportPath == "" {
		t.Error("no report written")
	} else if _, err := os.Stat(result.ReportPath); err != nil {
		t.Errorf("report file missing: %v", err)
	}

	if len(store.products) != 2 {
		t.Fatalf("store products = %d", len(store.products))
	}
	for _, p := range store.products {
		if !descriptionHasPermanentImages(p.description) {
			t.Errorf("%s: permanent images missing from description", p.name)
		}
		if p.taxonomy != "178" {
			t.Errorf("%s: taxonomy = %q, want 178", p.name, p.taxonomy)
		}
		hasBase := false
		for _, c := range p.categories {
			if c == BaseCategoryName {
				hasBase = true
			}
		}
		if !hasBase {
			t.Errorf("%s: base category missing: %v", p.name, p.categories)
		}
		hasFitGuide := false
		for _, a := range p.attributes {
			if a["productAttributeId"] == "attr-fit" && strings.Contains(a["value"].(string), fitGuideMarker) {
				hasFitGuide = true
			}
		}
		if !hasFitGuide {
			t.Errorf("%s: fit guide attribute not written", p.name)
		}
	}

	// Exact rule for RAYBAN 3025, brand fallback for OSSE.
	if got := store.priceBySKU["RAYBAN-3025-C12-1"]; got != 2400 {
		t.Errorf("rayban C12 price = %v, want 2400", got)
	}
	if got := store.priceBySKU["RAYBAN-3025-C03-2"]; got != 2400 {
		t.Errorf("rayban C03 price = %v, want 2400", got)
	}
	if got := store.priceBySKU["OSSE-2360-STANDART"]; got != 950 {
		t.Errorf("osse price = %v, want 950 (brand fallback)", got)
	}
}

func TestServiceRun_SecondRunIsIdempotent(t *testing.T) {
	store := newFakeStore(t)
	catalog := testCatalog(t)
	rules := testRulesFile(t)

	runSync(t, newTestService(t, store), catalog, rules)
	descriptions := make(map[string]string)
	for _, p := range store.products {
		descriptions[p.name] = p.description
	}

	result := runSync(t, newTestService(t, store), catalog, rules)
	sum := result.Summary
	if sum.Created != 0 || sum.Updated != 2 || sum.Failed != 0 {
		t.Fatalf("second run summary = %+v", sum)
	}
	if sum.UploadedImages != 0 {
		t.Errorf("second run uploaded = %d, want 0", sum.UploadedImages)
	}
	if sum.SkippedHasImages != 3 {
		t.Errorf("second run skipped-has-images = %d, want 3 variants", sum.SkippedHasImages)
	}
	for _, p := range store.products {
		if p.description != descriptions[p.name] {
			t.Errorf("%s: description changed on re-run", p.name)
		}
		if !descriptionHasPermanentImages(p.description) {
			t.Errorf("%s: permanent images lost on re-run", p.name)
		}
	}
}

func TestServiceRun_NoPriceRuleSkipsProduct(t *testing.T) {
	store := newFakeStore(t)
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "PERSOL 714", "img.png"))

	result := runSync(t, newTestService(t, store), root, testRulesFile(t))
	sum := result.Summary
	if sum.Total != 1 || sum.Skipped != 1 || sum.Created != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(store.products) != 0 {
		t.Errorf("skipped product reached the store: %d", len(store.products))
	}
}

func TestServiceRun_OneFailureDoesNotStopTheRun(t *testing.T) {
	store := newFakeStore(t)
	store.failCreateFor = "OSSE"

	result := runSync(t, newTestService(t, store), testCatalog(t), testRulesFile(t))
	sum := result.Summary
	if sum.Total != 2 {
		t.Fatalf("total = %d", sum.Total)
	}
	if sum.Failed != 1 || sum.Created != 1 {
		t.Errorf("failed = %d created = %d, want 1 and 1", sum.Failed, sum.Created)
	}
	if len(store.products) != 1 || !strings.Contains(store.products[0].name, "RAYBAN") {
		t.Errorf("store state = %+v", store.products)
	}
}

func TestServiceRun_VariantAddRejectionIsVariantFailure(t *testing.T) {
	store := newFakeStore(t)
	rules := testRulesFile(t)

	partial := t.TempDir()
	writePNG(t, filepath.Join(partial, "RAYBAN 3025", "COL.12", "a.png"))
	runSync(t, newTestService(t, store), partial, rules)

	full := t.TempDir()
	writePNG(t, filepath.Join(full, "RAYBAN 3025", "COL.12", "a.png"))
	writePNG(t, filepath.Join(full, "RAYBAN 3025", "COL.3", "a.png"))
	store.failAddVariantFor = "C03"

	result := runSync(t, newTestService(t, store), full, rules)
	sum := result.Summary
	if sum.Failed != 0 || sum.Updated != 1 {
		t.Fatalf("summary = %+v, want the product updated despite the rejected variant", sum)
	}
	// The rejected variant surfaces at the add, price and upload stages.
	if sum.VariantFailures != 3 {
		t.Errorf("variant failures = %d, want 3", sum.VariantFailures)
	}
	if got := store.priceBySKU["RAYBAN-3025-C12-1"]; got != 2400 {
		t.Errorf("surviving variant price = %v, want 2400", got)
	}
	if len(store.products) != 1 || len(store.products[0].variants) != 1 {
		t.Fatalf("store state = %+v", store.products)
	}
}

func TestServiceRun_FitGuideWrittenToVariants(t *testing.T) {
	store := newFakeStore(t)

	result := runSync(t, newTestService(t, store), testCatalog(t), testRulesFile(t))
	if result.Summary.Failed != 0 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	for _, p := range store.products {
		for _, v := range p.variants {
			has := false
			for _, a := range v.attrs {
				if a["productAttributeId"] == "attr-fit" && strings.Contains(a["value"].(string), fitGuideMarker) {
					has = true
				}
			}
			if !has {
				t.Errorf("%s %s: fit guide attribute not written on variant", p.name, v.sku)
			}
		}
	}
}

func TestServiceRun_MissingFitGuideAttributeFailsProducts(t *testing.T) {
	store := newFakeStore(t)
	store.noFitGuideAttr = true

	result := runSync(t, newTestService(t, store), testCatalog(t), testRulesFile(t))
	sum := result.Summary
	if sum.Failed != 2 || sum.Created != 0 || sum.Updated != 0 {
		t.Fatalf("summary = %+v, want every product failed", sum)
	}
}

func TestServiceRun_ReportsCompletionStatus(t *testing.T) {
	store := newFakeStore(t)
	store.failCreateFor = "OSSE"

	root := t.TempDir()
	writePNG(t, filepath.Join(root, "RAYBAN 3025", "COL.12", "a.png"))
	writePNG(t, filepath.Join(root, "OSSE 2360", "solo.png"))
	writePNG(t, filepath.Join(root, "PERSOL 714", "img.png"))

	var events []ProgressEvent
	svc := newTestServiceProgress(t, store, func(ev ProgressEvent) { events = append(events, ev) })
	runSync(t, svc, root, testRulesFile(t))

	done := make(map[string]string)
	for _, ev := range events {
		if ev.Stage == "product_done" {
			done[ev.Product] = ev.Status
		}
	}
	want := map[string]string{
		"RAYBAN 3025": StatusCreated,
		"OSSE 2360":   StatusFailed,
		"PERSOL 714":  StatusSkippedNoPrice,
	}
	for product, status := range want {
		if done[product] != status {
			t.Errorf("%s: completion status = %q, want %q", product, done[product], status)
		}
	}
	if len(done) != len(want) {
		t.Errorf("completion events = %d, want %d", len(done), len(want))
	}
}

func TestServiceRun_PriceRejectionIsVariantFailure(t *testing.T) {
	store := newFakeStore(t)
	store.priceErrors = []map[string]any{{"errorCode": "CURRENCY_MISMATCH", "inputArrayIndex": 0}}

	root := t.TempDir()
	writePNG(t, filepath.Join(root, "OSSE 2360", "solo.png"))

	result := runSync(t, newTestService(t, store), root, testRulesFile(t))
	sum := result.Summary
	if sum.Created != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.VariantFailures != 1 {
		t.Errorf("variant failures = %d, want 1", sum.VariantFailures)
	}
}
