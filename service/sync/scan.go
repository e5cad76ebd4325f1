package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// imageExtensions mirrors the staged output of the photo pipeline.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
}

// StandardVariant labels a product folder without any color-coded subfolder.
const StandardVariant = "STANDART"

var (
	nameTokenRe    = regexp.MustCompile(`[A-Za-z0-9ÇĞİÖŞÜçğıöşü.\-]+`)
	colMarkerRe    = regexp.MustCompile(`(?i)^col\.?\d+$`)
	digitRe        = regexp.MustCompile(`\d`)
	excelFloatRe   = regexp.MustCompile(`^\d+\.0$`)
	colVariantRe   = regexp.MustCompile(`(?i)\bCOL\.?\s*0*(\d{1,3})\b`)
	cVariantRe     = regexp.MustCompile(`(?i)\bC\s*0*(\d{1,3})\b`)
	plainNumberRe  = regexp.MustCompile(`\b0*(\d{1,3})\b`)
)

// VariantCandidate is one color variant discovered under a product folder.
type VariantCandidate struct {
	Label  string
	Dir    string
	Images []string
	SKU    string
}

// ProductCandidate is one locally staged product awaiting synchronization.
type ProductCandidate struct {
	Name     string
	Brand    string
	Model    string
	Variants []VariantCandidate
}

// Scan walks the staged output tree and builds product candidates. Each
// immediate subdirectory is a product; its subdirectories (if any) are the
// color variants, otherwise the product folder itself is the single
// standard variant.
func Scan(root string) ([]ProductCandidate, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("output directory not readable: %s: %v", root, err)}
	}

	var products []ProductCandidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		productDir := filepath.Join(root, entry.Name())
		brand, model := extractBrandModel(entry.Name())

		var variants []VariantCandidate
		subdirs, err := listSubdirs(productDir)
		if err != nil {
			return nil, err
		}

		if len(subdirs) > 0 {
			for i, variantDir := range subdirs {
				label := extractVariantLabel(filepath.Base(variantDir), true)
				images, err := collectImages(variantDir)
				if err != nil {
					return nil, err
				}
				variants = append(variants, VariantCandidate{
					Label:  label,
					Dir:    variantDir,
					Images: images,
					SKU:    normalizeSlug(fmt.Sprintf("%s-%s-%s-%d", brand, model, label, i+1)),
				})
			}
		} else {
			label := extractVariantLabel(entry.Name(), false)
			images, err := collectImages(productDir)
			if err != nil {
				return nil, err
			}
			variants = append(variants, VariantCandidate{
				Label:  label,
				Dir:    productDir,
				Images: images,
				SKU:    normalizeSlug(fmt.Sprintf("%s-%s-%s", brand, model, label)),
			})
		}

		products = append(products, ProductCandidate{
			Name:     entry.Name(),
			Brand:    brand,
			Model:    model,
			Variants: variants,
		})
	}
	return products, nil
}

func listSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}

func collectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	// Deterministic upload order.
	sort.Slice(images, func(i, j int) bool {
		return strings.ToLower(filepath.Base(images[i])) < strings.ToLower(filepath.Base(images[j]))
	})
	return images, nil
}

// extractBrandModel parses the product folder name: first token is the
// brand, the first later token containing a digit is the model. Color
// marker tokens (col.3) are skipped. Best effort, never fails.
func extractBrandModel(name string) (brand, model string) {
	tokens := nameTokenRe.FindAllString(name, -1)
	if len(tokens) == 0 {
		return "", ""
	}
	brand = tokens[0]
	for _, token := range tokens[1:] {
		t := strings.TrimSpace(token)
		if colMarkerRe.MatchString(t) {
			continue
		}
		if digitRe.MatchString(t) {
			model = normalizeModelText(t)
			break
		}
	}
	return brand, model
}

// normalizeModelText upper-cases a model token and strips the trailing ".0"
// that spreadsheet exports leave on numeric cells.
func normalizeModelText(value string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return ""
	}
	if excelFloatRe.MatchString(text) {
		return strings.SplitN(text, ".", 2)[0]
	}
	return strings.ToUpper(text)
}

// extractVariantLabel finds a color-code token in a folder name and returns
// the canonical C-prefixed form, or the standard sentinel. The trailing
// plain-number fallback is only allowed for real variant subfolders; it can
// misread unrelated numbers, a known accuracy limit kept for compatibility.
func extractVariantLabel(text string, allowPlainNumber bool) string {
	if text == "" {
		return StandardVariant
	}
	if m := colVariantRe.FindStringSubmatch(text); m != nil {
		return "C" + zeroPad(m[1])
	}
	if m := cVariantRe.FindStringSubmatch(text); m != nil {
		return "C" + zeroPad(m[1])
	}
	if allowPlainNumber {
		all := plainNumberRe.FindAllStringSubmatch(text, -1)
		if len(all) > 0 {
			return "C" + zeroPad(all[len(all)-1][1])
		}
	}
	return StandardVariant
}

// normalizeVariantLabel is the comparison key between local labels and
// remote variant values.
func normalizeVariantLabel(value string) string {
	text := strings.ToUpper(strings.TrimSpace(value))
	if text == "" {
		return StandardVariant
	}
	return text
}

func zeroPad(num string) string {
	if len(num) < 2 {
		return "0" + num
	}
	return num
}
