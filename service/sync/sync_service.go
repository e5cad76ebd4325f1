package sync

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ikas.GO/config"
	"ikas.GO/ikas"
)

// Options selects what one synchronization run covers.
type Options struct {
	CatalogRoot string
	RulesPath   string
	ReportDir   string
	// Limit stops after the first N products when positive.
	Limit int
	// SkipImages runs the catalog and metadata pass without uploads.
	SkipImages bool
}

// Summary carries the run counters printed at the end of a sync.
type Summary struct {
	Total            int
	Created          int
	Updated          int
	Skipped          int
	Failed           int
	UploadedImages   int
	SkippedHasImages int
	VariantFailures  int
}

// Result is the outcome of one full run.
type Result struct {
	Summary      Summary
	ReportPath   string
	FallbackUsed bool
}

// ProgressEvent is emitted as products are processed. Observers must not
// assume any call ordering beyond Index increasing. Status is set only on
// "product_done" events and carries the product's terminal report status.
type ProgressEvent struct {
	Stage   string
	Product string
	Index   int
	Total   int
	Status  string
	Message string
}

// Service drives a full catalog synchronization: price rules, local scan,
// remote upsert, metadata, prices and image upload.
type Service struct {
	client    *ikas.Client
	cfg       *config.Config
	log       zerolog.Logger
	progress  func(ProgressEvent)
	providers []descProvider

	report  *Report
	summary Summary

	channels []ikas.SalesChannel

	fitGuideAttrID string
}

func NewService(client *ikas.Client, cfg *config.Config, logger zerolog.Logger, progress func(ProgressEvent)) *Service {
	s := &Service{
		client:   client,
		cfg:      cfg,
		log:      logger,
		progress: progress,
	}
	if cfg.AIDescriptionEnabled {
		if cfg.OpenAIKey != "" {
			s.providers = append(s.providers, newOpenAIProvider(cfg.OpenAIKey, cfg.AIDescriptionModel))
		}
		if cfg.GeminiKey != "" {
			s.providers = append(s.providers, newGeminiProvider(cfg.GeminiKey))
		}
	}
	return s
}

// Run executes one synchronization pass. Setup failures (price rules, empty
// catalog, authentication, sales channels) abort the run; per-product
// failures are recorded and the run continues.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	rules, err := LoadRules(opts.RulesPath)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("rules", rules.Len()).Int("dropped", rules.Dropped).Msg("price rules loaded")

	candidates, err := Scan(opts.CatalogRoot)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &ConfigError{Msg: "catalog root contains no product directories: " + opts.CatalogRoot}
	}
	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	s.log.Info().Int("products", len(candidates)).Str("root", opts.CatalogRoot).Msg("catalog scanned")

	if err := s.client.Authenticate(ctx); err != nil {
		return nil, err
	}
	s.channels, err = s.client.ListSalesChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales channels: %w", err)
	}

	s.report = NewReport()
	s.summary = Summary{}

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.summary.Total++
		s.emit(ProgressEvent{
			Stage:   "product",
			Product: candidate.Name,
			Index:   i + 1,
			Total:   len(candidates),
		})
		status, err := s.processProduct(ctx, candidate, rules, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			status = StatusFailed
			s.summary.Failed++
			s.report.Add(StatusFailed, candidate.Name, "", err.Error())
			s.log.Error().Err(err).Str("product", candidate.Name).Msg("product failed")
		}
		s.emit(ProgressEvent{
			Stage:   "product_done",
			Product: candidate.Name,
			Index:   i + 1,
			Total:   len(candidates),
			Status:  status,
		})
	}

	result := &Result{
		Summary:      s.summary,
		FallbackUsed: s.client.FallbackUsed(),
	}
	path, err := s.report.Save(opts.ReportDir)
	if err != nil {
		s.log.Error().Err(err).Msg("could not write run report")
	} else {
		result.ReportPath = path
	}
	return result, nil
}

// emit delivers a progress event. A panicking observer never takes the run
// down with it.
func (s *Service) emit(ev ProgressEvent) {
	if s.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Interface("panic", r).Msg("progress observer panicked")
		}
	}()
	s.progress(ev)
}

// processProduct runs the full pipeline for one local product and returns
// the product's terminal status. Any returned error marks the product FAILED
// without touching its siblings.
func (s *Service) processProduct(ctx context.Context, candidate ProductCandidate, rules *RuleTable, opts Options) (status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %q: %v", candidate.Name, r)
		}
	}()

	rule, ok := rules.Resolve(candidate.Brand, candidate.Model)
	if !ok {
		s.summary.Skipped++
		s.report.Add(StatusSkippedNoPrice, candidate.Name, "", fmt.Sprintf("no price rule for brand=%s model=%s", candidate.Brand, candidate.Model))
		s.log.Warn().Str("product", candidate.Name).Msg("no price rule, skipped")
		return StatusSkippedNoPrice, nil
	}
	price := priceInput(rule)

	existing, err := s.findProduct(ctx, candidate.Name)
	if err != nil {
		return "", err
	}

	status = StatusUpdated
	if existing != nil {
		s.updateExisting(ctx, candidate, existing, price)
	} else {
		status = StatusCreated
		if _, err := s.createProduct(ctx, candidate, price); err != nil {
			return "", err
		}
	}

	if err := s.applyMetadata(ctx, candidate); err != nil {
		return "", fmt.Errorf("apply metadata: %w", err)
	}

	// Re-fetch once so prices and uploads see server-assigned variant ids,
	// including variants added moments ago.
	fresh, err := s.findProduct(ctx, candidate.Name)
	if err != nil {
		return "", err
	}
	if fresh == nil {
		return "", fmt.Errorf("product %q not found after write", candidate.Name)
	}

	if err := s.updateVariantPrices(ctx, candidate, fresh, price); err != nil {
		return "", err
	}
	if !opts.SkipImages {
		s.uploadVariantImages(ctx, candidate, fresh)
	}

	if status == StatusCreated {
		s.summary.Created++
	} else {
		s.summary.Updated++
	}
	s.report.Add(status, candidate.Name, "", fmt.Sprintf("%d variant(s)", len(candidate.Variants)))
	return status, nil
}

// findProduct searches by name and returns the exact match, nil when the
// product does not exist yet. Search results are fuzzy; only a normalized
// exact name counts.
func (s *Service) findProduct(ctx context.Context, name string) (*ikas.Product, error) {
	results, err := s.client.SearchProducts(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", name, err)
	}
	want := normalizeText(name)
	for i := range results {
		if normalizeText(results[i].Name) == want {
			return &results[i], nil
		}
	}
	return nil, nil
}

// channelTargets maps the store's sales channels to the visibility the
// engine enforces: visible everywhere except Trendyol-named channels.
func (s *Service) channelTargets() []ikas.SalesChannelTarget {
	targets := make([]ikas.SalesChannelTarget, 0, len(s.channels))
	for _, ch := range s.channels {
		status := "VISIBLE"
		if strings.Contains(foldText(ch.Name), "trendyol") {
			status = "PASSIVE"
		}
		targets = append(targets, ikas.SalesChannelTarget{ID: ch.ID, Status: status})
	}
	return targets
}

func (s *Service) createProduct(ctx context.Context, candidate ProductCandidate, price ikas.PriceInput) (*ikas.Product, error) {
	input := ikas.CreateProductInput{
		Name:          candidate.Name,
		Type:          "PHYSICAL",
		SalesChannels: s.channelTargets(),
		Variants:      buildVariantInputs(candidate, price),
	}
	created, err := s.client.CreateProduct(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.log.Info().Str("product", candidate.Name).Str("id", created.ID).Msg("product created")
	return created, nil
}

// updateExisting refreshes sales channel visibility and adds any local
// variants the remote product is missing. Channel errors are warn-only; a
// variant that cannot be added is a variant failure, never a product one.
func (s *Service) updateExisting(ctx context.Context, candidate ProductCandidate, existing *ikas.Product, price ikas.PriceInput) {
	channelUpdate := map[string]any{
		"id":            existing.ID,
		"name":          existing.Name,
		"salesChannels": s.channelTargets(),
	}
	if _, err := s.client.UpdateProduct(ctx, channelUpdate); err != nil {
		s.log.Warn().Err(err).Str("product", candidate.Name).Msg("sales channel update failed")
	}

	remote := buildRemoteVariantMap(existing)
	multi := isMultiVariant(candidate)
	for _, v := range candidate.Variants {
		if _, ok := remote[v.Label]; ok {
			continue
		}
		input := ikas.VariantInput{
			SKU:      v.SKU,
			IsActive: true,
			Prices:   []ikas.PriceInput{price},
		}
		if multi {
			input.VariantValues = []ikas.VariantValue{{VariantTypeName: "Renk", VariantValueName: v.Label}}
		}
		if _, err := s.client.AddVariant(ctx, existing.ID, input); err != nil {
			s.summary.VariantFailures++
			s.report.Add(StatusFailed, candidate.Name, v.Label, fmt.Sprintf("add variant: %v", err))
			s.log.Warn().Err(err).Str("product", candidate.Name).Str("variant", v.Label).Msg("variant add rejected")
			continue
		}
		s.log.Info().Str("product", candidate.Name).Str("variant", v.Label).Msg("variant added")
	}
}

// applyMetadata re-fetches the product and writes the merged catalog
// metadata: categories, tags, description, taxonomy, meta description and
// the fit guide attribute.
func (s *Service) applyMetadata(ctx context.Context, candidate ProductCandidate) error {
	fresh, err := s.findProduct(ctx, candidate.Name)
	if err != nil {
		return err
	}
	if fresh == nil {
		return fmt.Errorf("product %q not found after write", candidate.Name)
	}

	signals := detectSignals(candidate)

	categories := mergeNames(namedValues(fresh.Categories), buildCategoryNames(signals))
	tags := mergeNames(namedValues(fresh.Tags), buildTagNames(candidate, signals))
	tags = removeModelTag(tags, candidate.Model)

	description := s.resolveDescription(ctx, candidate, signals, fresh.Description)

	taxonomy := fresh.GoogleTaxonomyID
	if taxonomy == "" {
		taxonomy = s.cfg.GoogleTaxonomyID
	}

	update := map[string]any{
		"id":               fresh.ID,
		"name":             fresh.Name,
		"description":      description,
		"googleTaxonomyId": taxonomy,
		"categories":       nameInputs(categories),
		"tags":             nameInputs(tags),
		"metaData": map[string]any{
			"description": buildMetaDescription(candidate, signals),
		},
	}
	if _, err := s.client.UpdateProduct(ctx, update); err != nil {
		return err
	}

	return s.applyFitGuide(ctx, candidate, fresh, description)
}

// resolveDescription keeps a substantial existing description, otherwise
// asks the configured providers and finally falls back to the template. The
// permanent image block is guaranteed on every path.
func (s *Service) resolveDescription(ctx context.Context, candidate ProductCandidate, signals Signals, existing string) string {
	if utf8.RuneCountInString(stripHTML(existing)) >= 60 {
		return ensurePermanentImages(normalizeDescriptionHTML(existing))
	}

	labels := variantLabels(candidate)
	for _, p := range s.providers {
		text, err := p.Generate(ctx, candidate, signals, labels)
		if err != nil {
			s.log.Warn().Err(err).Str("provider", p.Name()).Str("product", candidate.Name).Msg("description provider failed")
			continue
		}
		if utf8.RuneCountInString(stripHTML(text)) < 140 {
			s.log.Warn().Str("provider", p.Name()).Str("product", candidate.Name).Msg("generated description too short, trying next")
			continue
		}
		return ensurePermanentImages(normalizeDescriptionHTML(text))
	}
	return buildBrandDescription(candidate, signals, labels)
}

// applyFitGuide writes the fixed fit guide into the store's HTML attribute,
// on the product and on every remote variant that does not carry it yet. A
// store without the attribute, or a rejected write, fails the product.
func (s *Service) applyFitGuide(ctx context.Context, candidate ProductCandidate, product *ikas.Product, description string) error {
	if descriptionHasFitGuide(description) {
		return nil
	}
	attrID, err := s.fitGuideAttribute(ctx)
	if err != nil {
		return err
	}

	var variantInputs []ikas.VariantAttributesInput
	for _, rv := range product.Variants {
		if strings.Contains(attributeValue(rv.Attributes, attrID), fitGuideMarker) {
			continue
		}
		variantInputs = append(variantInputs, ikas.VariantAttributesInput{
			VariantID: rv.ID,
			Attributes: []ikas.AttributeValue{
				{ProductAttributeID: attrID, Value: fitGuideHTML},
			},
		})
	}

	productNeeds := !strings.Contains(attributeValue(product.Attributes, attrID), fitGuideMarker)
	if !productNeeds && len(variantInputs) == 0 {
		return nil
	}

	input := ikas.AttributeUpdateInput{
		ProductID:         product.ID,
		VariantAttributes: variantInputs,
	}
	if productNeeds {
		input.ProductAttributes = []ikas.AttributeValue{
			{ProductAttributeID: attrID, Value: fitGuideHTML},
		}
	}
	if err := s.client.UpdateAttributes(ctx, input); err != nil {
		return fmt.Errorf("write fit guide: %w", err)
	}
	s.log.Info().Str("product", candidate.Name).Int("variants", len(variantInputs)).Msg("fit guide attribute written")
	return nil
}

// fitGuideAttribute resolves the fit guide attribute id, caching it for the
// rest of the run. An HTML-typed attribute with the expected name wins; a
// name-only match is accepted when no HTML-typed one exists.
func (s *Service) fitGuideAttribute(ctx context.Context) (string, error) {
	if s.fitGuideAttrID != "" {
		return s.fitGuideAttrID, nil
	}

	attrs, err := s.client.ListProductAttributes(ctx)
	if err != nil {
		return "", fmt.Errorf("list product attributes: %w", err)
	}
	want := foldText(FitGuideAttributeName)
	nameOnly := ""
	for _, a := range attrs {
		if foldText(a.Name) != want {
			continue
		}
		if strings.EqualFold(a.Type, "HTML") {
			s.fitGuideAttrID = a.ID
			return a.ID, nil
		}
		if nameOnly == "" {
			nameOnly = a.ID
		}
	}
	if nameOnly != "" {
		s.fitGuideAttrID = nameOnly
		return nameOnly, nil
	}
	return "", fmt.Errorf("product attribute %q is not defined on the store", FitGuideAttributeName)
}

// updateVariantPrices pushes the resolved price to every matched variant in
// one batch. Per-index rejections are variant failures, not product
// failures.
func (s *Service) updateVariantPrices(ctx context.Context, candidate ProductCandidate, product *ikas.Product, price ikas.PriceInput) error {
	remote := buildRemoteVariantMap(product)

	var inputs []ikas.VariantPriceInput
	var labels []string
	for _, v := range candidate.Variants {
		rv, ok := remote[v.Label]
		if !ok {
			s.summary.VariantFailures++
			s.report.Add(StatusFailed, candidate.Name, v.Label, "no matching remote variant for price update")
			continue
		}
		inputs = append(inputs, ikas.VariantPriceInput{
			ProductID: product.ID,
			VariantID: rv.ID,
			Price:     price,
		})
		labels = append(labels, v.Label)
	}
	if len(inputs) == 0 {
		return nil
	}

	priceErrors, err := s.client.UpdateVariantPrices(ctx, inputs)
	if err != nil {
		return fmt.Errorf("update variant prices: %w", err)
	}
	for _, pe := range priceErrors {
		label := ""
		if pe.InputArrayIndex >= 0 && pe.InputArrayIndex < len(labels) {
			label = labels[pe.InputArrayIndex]
		}
		s.summary.VariantFailures++
		s.report.Add(StatusFailed, candidate.Name, label, "price update rejected: "+pe.ErrorCode)
		s.log.Warn().Str("product", candidate.Name).Str("variant", label).Str("code", pe.ErrorCode).Msg("variant price rejected")
	}
	return nil
}

// uploadVariantImages uploads local images per variant, skipping variants
// that already carry remote images. Each failed file is an individual
// variant failure.
func (s *Service) uploadVariantImages(ctx context.Context, candidate ProductCandidate, product *ikas.Product) {
	remote := buildRemoteVariantMap(product)
	for _, v := range candidate.Variants {
		rv, ok := remote[v.Label]
		if !ok {
			s.summary.VariantFailures++
			s.report.Add(StatusFailed, candidate.Name, v.Label, "no matching remote variant, images not uploaded")
			continue
		}
		if len(rv.Images) > 0 {
			s.summary.SkippedHasImages++
			s.report.Add(StatusSkippedHasImages, candidate.Name, v.Label, fmt.Sprintf("remote variant already has %d image(s)", len(rv.Images)))
			continue
		}
		if len(v.Images) == 0 {
			s.summary.VariantFailures++
			s.report.Add(StatusFailed, candidate.Name, v.Label, "no local images for variant")
			continue
		}
		for order, path := range v.Images {
			if err := s.client.UploadImage(ctx, rv.ID, path, order); err != nil {
				s.summary.VariantFailures++
				s.report.Add(StatusFailed, candidate.Name, v.Label, fmt.Sprintf("upload %s: %v", path, err))
				s.log.Warn().Err(err).Str("product", candidate.Name).Str("variant", v.Label).Str("file", path).Msg("image upload failed")
				continue
			}
			s.summary.UploadedImages++
		}
	}
}

func isMultiVariant(candidate ProductCandidate) bool {
	return len(candidate.Variants) > 1 ||
		(len(candidate.Variants) == 1 && candidate.Variants[0].Label != StandardVariant)
}

func buildVariantInputs(candidate ProductCandidate, price ikas.PriceInput) []ikas.VariantInput {
	multi := isMultiVariant(candidate)
	inputs := make([]ikas.VariantInput, 0, len(candidate.Variants))
	for _, v := range candidate.Variants {
		in := ikas.VariantInput{
			SKU:      v.SKU,
			IsActive: true,
			Prices:   []ikas.PriceInput{price},
		}
		if multi {
			in.VariantValues = []ikas.VariantValue{{VariantTypeName: "Renk", VariantValueName: v.Label}}
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func priceInput(rule PriceRule) ikas.PriceInput {
	return ikas.PriceInput{
		SellPrice:     rule.SellPrice,
		DiscountPrice: rule.DiscountPrice,
		BuyPrice:      rule.BuyPrice,
	}
}

func namedValues(items []ikas.Named) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names
}

func nameInputs(names []string) []map[string]any {
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]any{"name": n})
	}
	return out
}

// removeModelTag drops tags that are just the bare model number; they leak
// from older imports and pollute storefront tag pages.
func removeModelTag(tags []string, model string) []string {
	if model == "" {
		return tags
	}
	want := foldText(model)
	out := tags[:0]
	for _, t := range tags {
		if foldText(t) == want {
			continue
		}
		out = append(out, t)
	}
	return out
}
