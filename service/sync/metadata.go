package sync

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"ikas.GO/ikas"
)

const (
	BaseCategoryName      = "Güneş Gözlüğü"
	ChildCategoryName     = "Çocuk"
	PolarizedCategoryName = "Polarize"

	FitGuideAttributeName = "Ölçü Rehberi"
	fitGuideMarker        = "KEPEKCI_FIT_GUIDE_V1"
)

var childKeywords = []string{"çocuk", "cocuk", "kids", "kid", "junior", "bebek"}
var polarizedKeywords = []string{"polarize", "polarized", "polarlı", "polar"}

// fitGuideHTML is the fixed-content fit guide written once per product and
// variant. The marker comment is how re-runs detect it.
const fitGuideHTML = `<!-- KEPEKCI_FIT_GUIDE_V1 -->
<div style="max-height:72vh;overflow-y:auto;overflow-x:hidden;padding-right:8px;box-sizing:border-box;">
  <section style="margin-top:8px;padding:16px;border:1px solid #e5e7eb;border-radius:14px;background:#f8fafc;max-width:920px;margin-left:auto;margin-right:auto;">
    <h2 style="margin:0 0 10px 0;font-size:20px;line-height:1.3;">📐 Beden ve Uyum Kılavuzu</h2>
    <p style="margin:0 0 10px 0;line-height:1.6;">
      Doğru gözlüğü seçmek bazen zor olabilir. En iyi uyumu yakalamak için <strong>boyut</strong>,
      <strong>uyum tipi</strong> ve <strong>köprü/burun yapısı</strong> birlikte değerlendirilmelidir.
    </p>
    <h3 style="margin:14px 0 8px 0;font-size:17px;">Kendim için doğru boyutu nasıl bulabilirim?</h3>
    <img src="https://cdn.myikas.com/images/56f7be34-3b4d-4237-866a-095dfdd960e7/6dec4f66-48ca-49be-bc7a-d3ac6e8cf5b6/image_1080.webp" alt="Gözlük ölçüm rehberi" style="width:100%;max-width:920px;border-radius:10px;margin:6px 0 10px 0;">
    <p style="margin:0 0 10px 0;line-height:1.6;">
      Size iyi oturan mevcut bir gözlüğünüzün menteşe-menteşe mesafesini cetvelle ölçün.
      Yaklaşık <strong>±4 mm</strong> tolerans aralığı, yeni çerçeve seçiminde güvenli bir referans sağlar.
    </p>
    <img src="https://cdn.myikas.com/images/56f7be34-3b4d-4237-866a-095dfdd960e7/63acfa3b-b745-448b-b5d1-7218581b072f/image_1080.webp" alt="Ölçü referans görseli" style="width:100%;max-width:920px;border-radius:10px;margin:6px 0 10px 0;">
    <h3 style="margin:14px 0 8px 0;font-size:17px;">Diğer ölçümler</h3>
    <p style="margin:0 0 8px 0;line-height:1.6;">
      Gözlük sapının iç yüzeyinde genellikle model kodu, lens genişliği, köprü genişliği ve sap uzunluğu yer alır.
      Bu değerler <strong>mm</strong> cinsindendir ve doğru seçimi kolaylaştırır.
    </p>
    <h3 style="margin:14px 0 8px 0;font-size:17px;">Uygunluk (Fit) tipleri</h3>
    <ul style="margin:0 0 10px 18px;line-height:1.7;padding:0;">
      <li><strong>Narrow Fit:</strong> Yüzün daha dar bölümünü kaplayan yapı.</li>
      <li><strong>Regular Fit:</strong> Çoğu kullanıcı için dengeli ve standart uyum.</li>
      <li><strong>Wide Fit:</strong> Daha geniş kaplama ve daha büyük ön çerçeve hissi.</li>
    </ul>
    <h3 style="margin:14px 0 8px 0;font-size:17px;">Köprü ve burun yastıkları</h3>
    <ul style="margin:0 0 0 18px;line-height:1.7;padding:0;">
      <li><strong>Yüksek köprü uyumu:</strong> Burun köprüsü yüksek kullanıcılar için daha stabil duruş.</li>
      <li><strong>Alçak köprü uyumu:</strong> Kayma yaşayan veya elmacık kemiği yüksek kullanıcılar için daha konforlu temas.</li>
      <li><strong>Evrensel uyum:</strong> Çoğu yüz şekline dengeli uyum sağlayan genel tasarım.</li>
      <li><strong>Ayarlanabilir burun yastığı:</strong> Burun formuna göre kişiselleştirilebilir destek.</li>
    </ul>
  </section>
</div>`

// Signals are textual hints detected on the candidate: child-sized frames
// and polarized lenses drive categories, tags and copy.
type Signals struct {
	IsChild     bool
	IsPolarized bool
}

// detectSignals scans the product name and variant folder names, diacritic
// folded, against the fixed keyword lists.
func detectSignals(candidate ProductCandidate) Signals {
	parts := []string{candidate.Name}
	for _, v := range candidate.Variants {
		parts = append(parts, filepath.Base(v.Dir))
	}
	source := foldText(strings.Join(parts, " "))

	var s Signals
	for _, kw := range childKeywords {
		if strings.Contains(source, foldText(kw)) {
			s.IsChild = true
			break
		}
	}
	for _, kw := range polarizedKeywords {
		if strings.Contains(source, foldText(kw)) {
			s.IsPolarized = true
			break
		}
	}
	return s
}

// buildCategoryNames always includes the base category and adds the
// signal-driven ones.
func buildCategoryNames(signals Signals) []string {
	categories := []string{BaseCategoryName}
	if signals.IsChild {
		categories = append(categories, ChildCategoryName)
	}
	if signals.IsPolarized {
		categories = append(categories, PolarizedCategoryName)
	}
	return categories
}

func buildTagNames(candidate ProductCandidate, signals Signals) []string {
	tags := []string{BaseCategoryName, strings.TrimSpace(candidate.Brand)}
	if signals.IsChild {
		tags = append(tags, ChildCategoryName)
	}
	if signals.IsPolarized {
		tags = append(tags, PolarizedCategoryName)
	}
	return mergeNames(nil, tags)
}

// variantLabels lists the distinct non-standard variant labels, sorted.
func variantLabels(candidate ProductCandidate) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, v := range candidate.Variants {
		label := normalizeVariantLabel(v.Label)
		if label == "" || label == StandardVariant || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// buildMetaDescription derives the SEO description, capped for search
// snippets.
func buildMetaDescription(candidate ProductCandidate, signals Signals) string {
	base := strings.TrimSpace(candidate.Brand + " " + candidate.Model + " güneş gözlüğü")
	bits := []string{base}
	if signals.IsPolarized {
		bits = append(bits, "polarize")
	}
	if signals.IsChild {
		bits = append(bits, "çocuk")
	}
	bits = append(bits, "Kepekçi Optik")
	text := strings.Join(bits, " - ")
	// The cap counts runes; slicing bytes would split multibyte Turkish
	// characters mid-sequence.
	if utf8.RuneCountInString(text) > 160 {
		return string([]rune(text)[:157]) + "..."
	}
	return text
}

// descriptionHasFitGuide detects the fit guide by marker or, for content
// written before the marker existed, by folded plain text.
func descriptionHasFitGuide(description string) bool {
	if strings.TrimSpace(description) == "" {
		return false
	}
	if strings.Contains(description, fitGuideMarker) {
		return true
	}
	plain := foldText(stripHTML(description))
	return strings.Contains(plain, "olcu rehberi") || strings.Contains(plain, "beden ve uyum kilavuzu")
}

// attributeValue extracts the value for one attribute id from a remote
// attribute list.
func attributeValue(attributes []ikas.AttributeValue, attributeID string) string {
	if attributeID == "" {
		return ""
	}
	for _, a := range attributes {
		if a.ProductAttributeID == attributeID {
			return a.Value
		}
	}
	return ""
}

// remoteVariantKey normalizes a remote variant to the local comparison key:
// the Renk-typed variant value when present, the first value otherwise,
// standard when the variant carries no values at all.
func remoteVariantKey(variant ikas.Variant) string {
	if len(variant.VariantValues) == 0 {
		return StandardVariant
	}
	for _, vv := range variant.VariantValues {
		if normalizeText(vv.VariantTypeName) == "renk" {
			return normalizeVariantLabel(vv.VariantValueName)
		}
	}
	return normalizeVariantLabel(variant.VariantValues[0].VariantValueName)
}

// buildRemoteVariantMap keys a product's variants by their normalized
// label, first occurrence wins.
func buildRemoteVariantMap(product *ikas.Product) map[string]ikas.Variant {
	m := make(map[string]ikas.Variant)
	for _, v := range product.Variants {
		key := remoteVariantKey(v)
		if _, ok := m[key]; !ok {
			m[key] = v
		}
	}
	return m
}
