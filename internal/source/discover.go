package source

import (
	"bytes"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/patchvote/internal/model"
)

// patchSlugPattern はパッチノートURLのスラグからバージョンを抽出するパターン。
// 例: /news/game-updates/teamfight-tactics-patch-16-4/
//     /news/game-updates/teamfight-tactics-patch-15-5-notes/
var patchSlugPattern = regexp.MustCompile(`teamfight-tactics-patch-(\d+)-(\d+)(?:-notes)?/?$`)

// ParsePatchLinksFromHTML はインデックスページのHTMLからパッチノートリンクを検出する。
// aタグのhref属性を走査し、パッチノートのスラグパターンに一致するものを
// PatchDescriptorとして収集する。相対URLはbaseURLを基準に絶対URLに解決される。
// 同一バージョンの重複リンクは最初の1件のみ採用する。
func ParsePatchLinksFromHTML(htmlBody []byte, baseURL string) []model.PatchDescriptor {
	var descriptors []model.PatchDescriptor

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return descriptors
	}

	seen := make(map[string]bool)
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return descriptors

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "a" || !hasAttr {
				continue
			}

			var href string
			for {
				key, val, more := tokenizer.TagAttr()
				if strings.ToLower(string(key)) == "href" {
					href = string(val)
				}
				if !more {
					break
				}
			}
			if href == "" {
				continue
			}

			version, ok := versionFromSlug(href)
			if !ok || seen[version] {
				continue
			}

			resolved := resolveURL(baseU, href)
			if resolved == "" {
				continue
			}

			seen[version] = true
			descriptors = append(descriptors, model.PatchDescriptor{
				Version: version,
				URL:     resolved,
			})
		}
	}
}

// versionFromSlug はURLスラグからパッチバージョン（"16.4"形式）を抽出する。
func versionFromSlug(href string) (string, bool) {
	m := patchSlugPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1] + "." + m[2], true
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// versionKey はバージョン文字列をソート可能な(major, minor)に分解する。
// 解釈できない場合はok=falseを返す。
func versionKey(version string) (major, minor int, ok bool) {
	parts := strings.SplitN(version, ".", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// filterVersionRange は設定された範囲内のバージョンのみを残す。
func filterVersionRange(descriptors []model.PatchDescriptor, majorMin, majorMax, minorMax int) []model.PatchDescriptor {
	var filtered []model.PatchDescriptor
	for _, d := range descriptors {
		major, minor, ok := versionKey(d.Version)
		if !ok {
			continue
		}
		if major < majorMin || major > majorMax {
			continue
		}
		if minor < 1 || minor > minorMax {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered
}

// sortVersionsDesc はバージョンの新しい順（降順）でソートする。
func sortVersionsDesc(descriptors []model.PatchDescriptor) {
	sort.SliceStable(descriptors, func(i, j int) bool {
		mi, ni, oki := versionKey(descriptors[i].Version)
		mj, nj, okj := versionKey(descriptors[j].Version)
		if !oki || !okj {
			return oki && !okj
		}
		if mi != mj {
			return mi > mj
		}
		return ni > nj
	})
}
