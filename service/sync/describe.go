package sync

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const descriptionImageWidthPx = 820

// The two marketing images every description must open with, exactly once.
var permanentImageURLs = [2]string{
	"https://cdn.myikas.com/images/56f7be34-3b4d-4237-866a-095dfdd960e7/50717bb5-d5e7-43f9-9b46-e0b0f18836ce/image_1080.webp",
	"https://cdn.myikas.com/images/56f7be34-3b4d-4237-866a-095dfdd960e7/dc9dda01-4f36-4f68-884e-ad15df876f7c/image_1080.webp",
}

func descriptionImageStyle() string {
	return fmt.Sprintf(
		"width:%dpx !important;max-width:100%% !important;height:auto !important;display:block;float:none !important;clear:none !important;margin:0 0 16px 0;border-radius:10px;box-shadow:0 4px 14px rgba(0,0,0,0.08)",
		descriptionImageWidthPx,
	)
}

type brandProfile struct {
	identity string
	design   string
	usage    string
}

var brandProfiles = map[string]brandProfile{
	"rayban": {
		identity: "zamansız ve ikonik çizgisiyle premium şehir stilini temsil eder",
		design:   "kemik ve metal dengesiyle yüz hatlarını netleştiren güçlü bir tasarım dili sunar",
		usage:    "günlük kullanım, sürüş ve açık hava aktivitelerinde uzun süreli konfor hedefler",
	},
	"osse": {
		identity: "modern şehir modasına yakın, dinamik çizgilere sahip bir stil yaklaşımı sunar",
		design:   "hafif gövde yapısı ve yüze dengeli oturan formu ile konforu ön planda tutar",
		usage:    "günlük kombinlerde ve aktif kullanımda stil ile pratikliği birlikte taşır",
	},
	"venture": {
		identity: "modern ve sportif çizgisiyle işlevsel kullanım dengesini öne çıkarır",
		design:   "dayanıklı çerçeve yapısı ve dengeli ağırlık dağılımı ile gün boyu rahatlık sağlar",
		usage:    "şehir yaşamı, seyahat ve açık hava kullanımında çok yönlü performans sunar",
	},
}

var defaultBrandProfile = brandProfile{
	identity: "güncel tasarım dili ve dengeli kullanım deneyimi sunar",
	design:   "hafif yapı ve ergonomik formu ile gün boyu konfor odaklı bir kullanım hedefler",
	usage:    "günlük yaşamdan açık hava kullanımına kadar farklı senaryolarda güvenli eşlik sunar",
}

var profileKeyRe = regexp.MustCompile(`[^a-z0-9]+`)

func brandProfileKey(value string) string {
	return profileKeyRe.ReplaceAllString(foldText(value), "")
}

// buildPermanentImageHTML renders the fixed marketing image blocks.
func buildPermanentImageHTML() string {
	style := descriptionImageStyle()
	var b strings.Builder
	for _, url := range permanentImageURLs {
		b.WriteString(`<p><img src="` + url + `" style="` + style + `"></p>`)
	}
	return b.String()
}

func descriptionHasPermanentImages(description string) bool {
	if description == "" {
		return false
	}
	for _, url := range permanentImageURLs {
		if !strings.Contains(description, url) {
			return false
		}
	}
	return true
}

// ensurePermanentImages guarantees the two marketing images open the
// description exactly once, no matter how often it is reapplied.
func ensurePermanentImages(description string) string {
	text := strings.TrimSpace(description)
	imageBlock := buildPermanentImageHTML()
	if text == "" {
		return imageBlock
	}
	if descriptionHasPermanentImages(text) {
		return text
	}

	// A partial leftover from an earlier run is stripped before the block
	// is prepended again.
	for _, url := range permanentImageURLs {
		quoted := regexp.QuoteMeta(url)
		for _, quote := range []string{`"`, `'`} {
			re := regexp.MustCompile(`(?is)<p>\s*<img\b[^>]*\bsrc\s*=\s*` + quote + quoted + quote + `[^>]*>\s*</p>`)
			text = strings.TrimSpace(re.ReplaceAllString(text, ""))
		}
	}
	return imageBlock + text
}

var (
	imgTagRe        = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	styleAttrDqRe   = regexp.MustCompile(`(?is)style\s*=\s*"([^"]*)"`)
	styleAttrSqRe   = regexp.MustCompile(`(?is)style\s*=\s*'([^']*)'`)
	classAttrDqRe   = regexp.MustCompile(`(?is)\sclass\s*=\s*"([^"]*)"`)
	classAttrSqRe   = regexp.MustCompile(`(?is)\sclass\s*=\s*'([^']*)'`)
	floatLeftRe     = regexp.MustCompile(`(?i)note-float-left`)
	emptyQuotesRe   = regexp.MustCompile(`""\s*(/?>)`)
	multiSpaceRe    = regexp.MustCompile(`\s{2,}`)
	imgBrInPRe      = regexp.MustCompile(`(?is)(<p>\s*<img\b[^>]*>)\s*(?:<strong>\s*)?(?:<br\s*/?>\s*)+(?:</strong>\s*)?\s*(</p>)`)
	emptyBrPRe      = regexp.MustCompile(`(?i)<p>\s*(?:<strong>\s*)?(?:<br\s*/?>\s*)+(?:</strong>\s*)?</p>`)
	emptyPRe        = regexp.MustCompile(`(?i)<p>\s*</p>`)
	brRunRe         = regexp.MustCompile(`(?i)(?:\s*<br\s*/?>\s*){3,}`)
	detailsBlockRe  = regexp.MustCompile(`(?is)<details\b[^>]*>\s*<summary\b[^>]*>.*?</summary>\s*<div\b[^>]*>(.*?)</div>\s*</details>`)
	detailsTagRe    = regexp.MustCompile(`(?i)</?details\b[^>]*>`)
	summaryTagRe    = regexp.MustCompile(`(?i)</?summary\b[^>]*>`)
	showAllSpanRe   = regexp.MustCompile(`(?is)<span\b[^>]*\bid\s*=\s*['"]show-all-description['"][^>]*>.*?</span>`)
	leadingImgPRe   = regexp.MustCompile(`(?is)^\s*<p>\s*<img\b[^>]*>(?:\s*(?:<strong>\s*)?(?:<br\s*/?>\s*)+(?:</strong>\s*)?)*\s*</p>`)
	removableStyles = map[string]bool{
		"width": true, "max-width": true, "height": true, "display": true,
		"margin": true, "float": true, "clear": true, "border-radius": true,
		"box-shadow": true,
	}
)

// normalizeDescriptionImages forces every img tag onto the single fixed
// style template so repeated runs cannot accumulate styles.
func normalizeDescriptionImages(description string) string {
	text := strings.TrimSpace(description)
	if text == "" || !strings.Contains(strings.ToLower(text), "<img") {
		return text
	}

	fixedStyle := descriptionImageStyle()
	return imgTagRe.ReplaceAllStringFunc(text, func(tag string) string {
		styleRe := styleAttrDqRe
		m := styleRe.FindStringSubmatchIndex(tag)
		if m == nil {
			styleRe = styleAttrSqRe
			m = styleRe.FindStringSubmatchIndex(tag)
		}

		var kept []string
		if m != nil {
			rawStyle := tag[m[2]:m[3]]
			for _, part := range strings.Split(rawStyle, ";") {
				piece := strings.TrimSpace(part)
				if piece == "" || !strings.Contains(piece, ":") {
					continue
				}
				kv := strings.SplitN(piece, ":", 2)
				key := strings.ReplaceAll(normalizeText(kv[0]), " ", "")
				if removableStyles[key] {
					continue
				}
				// Harmless extra styles survive; layout styles always come
				// from the template.
				kept = append(kept, strings.TrimSpace(kv[0])+": "+strings.TrimSpace(kv[1]))
			}
		}

		mergedStyle := fixedStyle
		if len(kept) > 0 {
			mergedStyle = strings.Join(kept, "; ") + "; " + fixedStyle
		}

		if m != nil {
			tag = tag[:m[0]] + `style="` + mergedStyle + `"` + tag[m[1]:]
		} else {
			if strings.HasSuffix(tag, "/>") {
				tag = tag[:len(tag)-2] + ` style="` + mergedStyle + `"/>`
			} else {
				tag = tag[:len(tag)-1] + ` style="` + mergedStyle + `">`
			}
		}

		cleanClass := func(re *regexp.Regexp, s string) string {
			return re.ReplaceAllStringFunc(s, func(attr string) string {
				sub := re.FindStringSubmatch(attr)
				var classes []string
				for _, c := range strings.Fields(sub[1]) {
					if normalizeText(c) != "note-float-left" {
						classes = append(classes, c)
					}
				}
				if len(classes) > 0 {
					return ` class="` + strings.Join(classes, " ") + `"`
				}
				return ""
			})
		}
		tag = cleanClass(classAttrDqRe, tag)
		tag = cleanClass(classAttrSqRe, tag)

		// Residue from older broken transforms.
		tag = floatLeftRe.ReplaceAllString(tag, "")
		tag = emptyQuotesRe.ReplaceAllString(tag, `"$1`)
		tag = multiSpaceRe.ReplaceAllString(tag, " ")
		return tag
	})
}

// normalizeDescriptionHTML cleans storefront-breaking markup and re-anchors
// any leading image blocks to the very top.
func normalizeDescriptionHTML(description string) string {
	text := strings.TrimSpace(description)
	if text == "" {
		return text
	}
	text = normalizeDescriptionImages(text)
	text = imgBrInPRe.ReplaceAllString(text, "$1$2")
	text = emptyBrPRe.ReplaceAllString(text, "")
	text = emptyPRe.ReplaceAllString(text, "")
	text = brRunRe.ReplaceAllString(text, "<br><br>")
	text = detailsBlockRe.ReplaceAllString(text, "$1")
	text = detailsTagRe.ReplaceAllString(text, "")
	text = summaryTagRe.ReplaceAllString(text, "")
	text = showAllSpanRe.ReplaceAllString(text, "")

	var imageBlocks []string
	remaining := text
	for {
		loc := leadingImgPRe.FindStringIndex(remaining)
		if loc == nil {
			break
		}
		imageBlocks = append(imageBlocks, strings.TrimSpace(remaining[loc[0]:loc[1]]))
		remaining = strings.TrimLeft(remaining[loc[1]:], " \t\r\n")
	}
	if len(imageBlocks) > 0 {
		text = strings.Join(imageBlocks, "") + remaining
	}
	return strings.TrimSpace(text)
}

// buildBrandDescription is the deterministic fallback template, keyed on a
// small brand profile table with a generic default.
func buildBrandDescription(candidate ProductCandidate, signals Signals, labels []string) string {
	brandText := strings.TrimSpace(candidate.Brand)
	if brandText == "" {
		brandText = "Bu"
	}
	modelText := strings.TrimSpace(candidate.Model)

	profile, ok := brandProfiles[brandProfileKey(brandText)]
	if !ok {
		profile = defaultBrandProfile
	}

	var traits []string
	if signals.IsPolarized {
		traits = append(traits, "polarize lens desteği")
	}
	if signals.IsChild {
		traits = append(traits, "çocuk kullanımına uygun ölçü yaklaşımı")
	}
	traitText := "standart güneş koruma yaklaşımı"
	if len(traits) > 0 {
		traitText = strings.Join(traits, ", ")
	}

	modelLine := ""
	if modelText != "" {
		modelLine = " " + modelText
	}
	variantLine := "Model tek varyant veya standart renk yapısıyla listelenmektedir."
	if len(labels) > 0 {
		variantLine = "Renk seçenekleri: " + strings.Join(labels, ", ") + "."
	}
	modelCell := modelText
	if modelCell == "" {
		modelCell = "-"
	}

	body := "<p><strong>" + brandText + modelLine + " Güneş Gözlüğü</strong>, " + profile.identity + ". " +
		"Günlük stil ile fonksiyonel korumayı tek bir ürün yapısında birleştirir.</p>" +
		"<h2>Tasarım ve Konfor</h2><p>" + profile.design + ". " +
		"Çerçeve geometrisi yüz hattına dengeli oturur ve uzun kullanımda baskıyı azaltmayı hedefler.</p>" +
		"<h2>Koruma ve Lens Performansı</h2><p>Üründe " + traitText + " yaklaşımı bulunur. " +
		"Güneşli ortamlarda daha kontrollü görüş sunarken dış mekân kullanım konforunu artırır.</p>" +
		"<h2>Varyant ve Stil Seçenekleri</h2><p>" + variantLine + " " +
		"Farklı kombinlere uyum sağlayan renk alternatifleri ile kullanım esnekliği sunulur.</p>" +
		"<h2>Kullanım Önerisi</h2><p>" + profile.usage + ". " +
		"Yüz ölçünüze uygun seçim yapmanız hem estetik görünüm hem kullanım verimi açısından önemlidir.</p>" +
		"<ul><li><strong>Marka:</strong> " + brandText + "</li>" +
		"<li><strong>Model:</strong> " + modelCell + "</li>" +
		"<li><strong>Kategori:</strong> Güneş Gözlüğü</li></ul>"
	return ensurePermanentImages(body)
}

// descProvider generates marketing copy. Providers are optional and may
// fail; the caller falls back to the deterministic template.
type descProvider interface {
	Name() string
	Generate(ctx context.Context, candidate ProductCandidate, signals Signals, labels []string) (string, error)
}

// chatProvider speaks the OpenAI chat-completion API. Gemini is reached
// through its OpenAI-compatible endpoint with a custom base URL.
type chatProvider struct {
	name   string
	client *openai.Client
	model  string
}

const geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

func newOpenAIProvider(apiKey, model string) *chatProvider {
	return &chatProvider{
		name:   "openai",
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func newGeminiProvider(apiKey string) *chatProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = geminiOpenAIBaseURL
	return &chatProvider{
		name:   "gemini",
		client: openai.NewClientWithConfig(cfg),
		model:  "gemini-1.5-flash",
	}
}

func (p *chatProvider) Name() string { return p.name }

func (p *chatProvider) Generate(ctx context.Context, candidate ProductCandidate, signals Signals, labels []string) (string, error) {
	var traits []string
	if signals.IsPolarized {
		traits = append(traits, "polarize")
	}
	if signals.IsChild {
		traits = append(traits, "çocuk")
	}
	traitText := "standart"
	if len(traits) > 0 {
		traitText = strings.Join(traits, ", ")
	}
	variantText := "standart varyant"
	if len(labels) > 0 {
		variantText = strings.Join(labels, ", ")
	}

	prompt := fmt.Sprintf(
		"Ürün adı: %s\nMarka: %s\nModel: %s\nÖzellik ipucu: %s\nVaryantlar: %s\n\n"+
			"Türkçe, e-ticaret için daha gelişmiş bir ürün açıklaması yaz. "+
			"Uzunluk 190-280 kelime olsun. "+
			"Emoji destekli bölüm yapısı kullan: 🕶️, ☀️, ✨, 🎨. "+
			"Bölümler: Giriş, Koruma/Performans, Tasarım/Konfor, Varyantlar. "+
			"Yanıt sadece HTML olsun; <p>, <strong>, <br> kullanabilirsin. "+
			"Aşırı reklam dili kullanma, teknik ve anlaşılır kal.",
		candidate.Name, candidate.Brand, candidate.Model, traitText, variantText,
	)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.5,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You generate detailed Turkish ecommerce product descriptions with structured HTML blocks.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s returned empty text", p.name)
	}
	return content, nil
}
