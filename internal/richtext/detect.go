// Package richtext finds mentions, links and tags in post text and turns
// them into facets over the UTF-8 bytes of the text.
package richtext

import (
	"cmp"
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/rivo/uniseg"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/models"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"
)

const maxTagLength = 64

// Whitespace as ECMAScript defines it; Go's \s is ASCII only.
const (
	space     = `\p{Z}\t\n\v\f\r\x{FEFF}`
	invisible = `\x{00AD}\x{2060}\x{200A}\x{200B}\x{200C}\x{200D}\x{20e2}`
)

var (
	mentionRegex = regexp.MustCompile(`(^|[` + space + `]|\()(@)([a-zA-Z0-9.-]+)\b`)
	urlRegex     = regexp.MustCompile(`(?im)(^|[` + space + `]|\()((https?://[^` + space + `]+)|((?P<domain>[a-z][a-z0-9]*(\.[a-z0-9]+)+)[^` + space + `]*))`)
	tagRegex     = regexp.MustCompile(`(^|[` + space + `])([#＃])([^` + space + invisible + `]*[^\d` + space + `\p{P}` + invisible + `]+[^` + space + invisible + `]*)?`)

	handleRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

// HandleResolver maps a handle to a DID.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

type HandleResolverFunc func(ctx context.Context, handle string) (string, error)

func (f HandleResolverFunc) ResolveHandle(ctx context.Context, handle string) (string, error) {
	return f(ctx, handle)
}

// RichText is normalized text plus the facets detected in it.
type RichText struct {
	Text   string
	Facets []*bsky.RichtextFacet
}

// GraphemeLength counts user-perceived characters.
func (r *RichText) GraphemeLength() int {
	return GraphemeLength(r.Text)
}

func GraphemeLength(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

type Detector struct {
	resolver HandleResolver
}

func NewDetector(resolver HandleResolver) *Detector {
	return &Detector{resolver: resolver}
}

// Detect normalizes text to NFC and finds its facets. Mentions whose handle
// does not resolve are left as plain text; a failure to reach the resolver
// is returned.
func (d *Detector) Detect(ctx context.Context, text string) (*RichText, error) {

	text = norm.NFC.String(text)

	var facets []*bsky.RichtextFacet

	mentions, err := d.detectMentions(ctx, text)
	if err != nil {
		return nil, err
	}
	facets = append(facets, mentions...)
	facets = append(facets, detectLinks(text)...)
	facets = append(facets, detectTags(text)...)

	slices.SortStableFunc(facets, func(a, b *bsky.RichtextFacet) int {
		return cmp.Compare(a.Index.ByteStart, b.Index.ByteStart)
	})

	logrus.WithFields(logrus.Fields{
		"facets": len(facets),
	}).Debugln("Detected facets")

	return &RichText{
		Text:   text,
		Facets: facets,
	}, nil
}

func (d *Detector) detectMentions(ctx context.Context, text string) ([]*bsky.RichtextFacet, error) {
	var facets []*bsky.RichtextFacet

	for _, m := range mentionRegex.FindAllStringSubmatchIndex(text, -1) {
		// groups: 1 leading, 2 "@", 3 handle
		handle := text[m[6]:m[7]]
		if !IsValidHandle(handle) {
			continue
		}

		if d.resolver == nil {
			continue
		}

		did, err := d.resolver.ResolveHandle(ctx, strings.ToLower(handle))
		if err != nil {
			if errors.Is(err, models.ErrNetwork) {
				return nil, err
			}
			logrus.WithError(err).WithField("handle", handle).Debugln("Could not resolve mention")
			continue
		}
		if len(did) == 0 {
			continue
		}

		facets = append(facets, newFacet(m[4], m[7], &bsky.RichtextFacet_Features_Elem{
			RichtextFacet_Mention: &bsky.RichtextFacet_Mention{Did: did},
		}))
	}

	return facets, nil
}

func detectLinks(text string) []*bsky.RichtextFacet {
	var facets []*bsky.RichtextFacet
	domainGroup := urlRegex.SubexpIndex("domain")

	for _, m := range urlRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[4], m[5]
		uri := text[start:end]

		if !strings.HasPrefix(strings.ToLower(uri), "http") {
			domain := text[m[2*domainGroup]:m[2*domainGroup+1]]
			if !IsValidDomain(domain) {
				continue
			}
			uri = "https://" + uri
		}

		// Strip ending punctuation
		if strings.ContainsAny(uri[len(uri)-1:], ".,;:!?") {
			uri = uri[:len(uri)-1]
			end--
		}
		if strings.HasSuffix(uri, ")") && !strings.Contains(uri, "(") {
			uri = uri[:len(uri)-1]
			end--
		}

		facets = append(facets, newFacet(start, end, &bsky.RichtextFacet_Features_Elem{
			RichtextFacet_Link: &bsky.RichtextFacet_Link{Uri: uri},
		}))
	}

	return facets
}

func detectTags(text string) []*bsky.RichtextFacet {
	var facets []*bsky.RichtextFacet

	for _, m := range tagRegex.FindAllStringSubmatchIndex(text, -1) {
		// groups: 1 leading, 2 hash sign, 3 tag
		if m[6] < 0 {
			continue
		}

		tag := text[m[6]:m[7]]
		if strings.HasPrefix(tag, "\ufe0f") {
			continue
		}

		tag = strings.TrimRightFunc(strings.TrimSpace(tag), unicode.IsPunct)
		if len(tag) == 0 || utf8.RuneCountInString(tag) > maxTagLength {
			continue
		}

		facets = append(facets, newFacet(m[4], m[6]+len(tag), &bsky.RichtextFacet_Features_Elem{
			RichtextFacet_Tag: &bsky.RichtextFacet_Tag{Tag: tag},
		}))
	}

	return facets
}

func newFacet(start int, end int, feature *bsky.RichtextFacet_Features_Elem) *bsky.RichtextFacet {
	return &bsky.RichtextFacet{
		Index: &bsky.RichtextFacet_ByteSlice{
			ByteStart: int64(start),
			ByteEnd:   int64(end),
		},
		Features: []*bsky.RichtextFacet_Features_Elem{feature},
	}
}

// IsValidHandle checks the syntax of a handle and that it ends in a known
// suffix. The .test TLD is accepted for development servers.
func IsValidHandle(handle string) bool {
	if len(handle) > 253 || !handleRegex.MatchString(handle) {
		return false
	}
	return strings.HasSuffix(strings.ToLower(handle), ".test") || IsValidDomain(handle)
}

// IsValidDomain reports whether the domain has at least two labels and its
// top level label is an ICANN TLD.
func IsValidDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	_, icann := publicsuffix.PublicSuffix(domain[dot+1:])
	return icann
}
