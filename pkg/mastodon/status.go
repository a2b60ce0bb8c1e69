package mastodon

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/naumanni/naumanni-server/pkg/normalizr"
)

// Account is a read-only view over an account record.
type Account normalizr.Record

// ID returns the account id key.
func (a Account) ID() string {
	id, _ := normalizr.IDKey(a["id"])
	return id
}

// Acct returns the webfinger-style account name.
func (a Account) Acct() string {
	s, _ := a["acct"].(string)
	return s
}

// Status is a read-only view over a status record.
type Status normalizr.Record

// ID returns the status id key.
func (s Status) ID() string {
	id, _ := normalizr.IDKey(s["id"])
	return id
}

// Content returns the raw HTML content.
func (s Status) Content() string {
	c, _ := s["content"].(string)
	return c
}

// SpoilerText returns the content warning, if any.
func (s Status) SpoilerText() string {
	c, _ := s["spoiler_text"].(string)
	return c
}

// AccountID returns the author id. On a normalized record the account field
// already holds the id; on a raw record it holds the nested account.
func (s Status) AccountID() string {
	switch v := s["account"].(type) {
	case map[string]any:
		return Account(v).ID()
	default:
		id, _ := normalizr.IDKey(v)
		return id
	}
}

// PlainContent returns the text of the HTML content. Paragraphs and line
// breaks become newlines; surrounding whitespace is trimmed.
func (s Status) PlainContent() string {
	doc, err := html.Parse(strings.NewReader(s.Content()))
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteByte('\n')
		case n.Type == html.ElementNode && n.Data == "p" && sb.Len() > 0:
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}

// URLs returns the link targets in the content, skipping mentions and
// hashtags.
func (s Status) URLs() []string {
	doc, err := html.Parse(strings.NewReader(s.Content()))
	if err != nil {
		return nil
	}
	var urls []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href, class string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "href":
					href = attr.Val
				case "class":
					class = attr.Val
				}
			}
			if href != "" && !hasClass(class, "mention") && !hasClass(class, "hashtag") {
				urls = append(urls, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return urls
}

// URLsWithoutMedia returns URLs minus the ones pointing at the status' own
// media attachments.
func (s Status) URLsWithoutMedia() []string {
	media := map[string]struct{}{}
	attachments, _ := s["media_attachments"].([]any)
	for _, a := range attachments {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range []string{"url", "remote_url", "text_url", "preview_url"} {
			if u, _ := m[k].(string); u != "" {
				media[u] = struct{}{}
			}
		}
	}

	urls := []string{}
	for _, u := range s.URLs() {
		if _, isMedia := media[u]; !isMedia {
			urls = append(urls, u)
		}
	}
	return urls
}

func hasClass(attr, name string) bool {
	for _, c := range strings.Fields(attr) {
		if c == name {
			return true
		}
	}
	return false
}
