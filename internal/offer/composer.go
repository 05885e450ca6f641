package offer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// Default templates used when a proposal carries no subject/body overrides.
// Proposal content keys "subject_template" and "body_template" take
// precedence.
const (
	defaultSubjectTemplate = `{{ company | default: domain }}: co jsme zjistili o vašem webu`

	defaultBodyTemplate = `<html><body>
<p>Dobrý den{% if company != "" %}, {{ company }}{% endif %},</p>
<p>podívali jsme se na web <a href="{{ url }}">{{ domain }}</a> a našli jsme
{{ issue_count }} věcí, které by šly zlepšit.
{% if score > 0 %}Celkové skóre webu je {{ score }}/100.{% endif %}</p>
{% if summary != "" %}<p>{{ summary }}</p>{% endif %}
<p><a href="{{ click_url }}">Podrobnosti najdete zde</a>.</p>
<p>S pozdravem,<br>{{ sender }}</p>
<img src="{{ pixel_url }}" width="1" height="1" alt="">
<p style="font-size:11px"><a href="{{ unsubscribe_url }}">Odhlásit odběr</a></p>
</body></html>`
)

// Composer renders offer subject and body from liquid templates. Parsed
// templates are cached by source text.
type Composer struct {
	engine  *liquid.Engine
	baseURL string
	sender  string

	mu    sync.Mutex
	cache map[string]*liquid.Template
}

// NewComposer creates a composer. baseURL is the public origin for tracking
// links; sender is the human signature line.
func NewComposer(baseURL, sender string) *Composer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})
	return &Composer{
		engine:  engine,
		baseURL: strings.TrimRight(baseURL, "/"),
		sender:  sender,
		cache:   map[string]*liquid.Template{},
	}
}

// Compose fills in subject, body and plain-text body on the offer from the
// proposal and lead. The offer must already carry its tracking token.
func (c *Composer) Compose(o *domain.Offer, lead *domain.Lead, proposal *domain.Proposal) error {
	subjectTpl := defaultSubjectTemplate
	bodyTpl := defaultBodyTemplate
	bindings := map[string]interface{}{
		"company":         lead.CompanyName,
		"domain":          lead.Domain,
		"url":             lead.URL,
		"sender":          c.sender,
		"pixel_url":       c.PixelURL(o.TrackingToken),
		"click_url":       c.ClickURL(o.TrackingToken, lead.URL),
		"unsubscribe_url": c.UnsubscribeURL(o.TrackingToken),
		"issue_count":     0,
		"score":           0,
		"summary":         "",
	}
	if proposal != nil {
		for k, v := range proposal.Content {
			switch k {
			case "subject_template":
				if s, ok := v.(string); ok && s != "" {
					subjectTpl = s
				}
			case "body_template":
				if s, ok := v.(string); ok && s != "" {
					bodyTpl = s
				}
			default:
				bindings[k] = v
			}
		}
	}

	subject, err := c.render(subjectTpl, bindings)
	if err != nil {
		return domain.Wrap(domain.KindInvalidInput, "render subject template", err)
	}
	body, err := c.render(bodyTpl, bindings)
	if err != nil {
		return domain.Wrap(domain.KindInvalidInput, "render body template", err)
	}

	o.Subject = strings.TrimSpace(subject)
	o.Body = body
	o.PlainTextBody = htmlToPlainText(body)
	return nil
}

// PixelURL is the open-tracking pixel address for a token.
func (c *Composer) PixelURL(token string) string {
	return fmt.Sprintf("%s/api/track/open/%s", c.baseURL, token)
}

// ClickURL wraps target in the click-tracking redirect.
func (c *Composer) ClickURL(token, target string) string {
	return fmt.Sprintf("%s/api/track/click/%s?url=%s", c.baseURL, token, url.QueryEscape(target))
}

// UnsubscribeURL is the unsubscribe form address for a token.
func (c *Composer) UnsubscribeURL(token string) string {
	return fmt.Sprintf("%s/unsubscribe/%s", c.baseURL, token)
}

func (c *Composer) render(source string, bindings map[string]interface{}) (string, error) {
	c.mu.Lock()
	tpl, ok := c.cache[source]
	c.mu.Unlock()
	if !ok {
		var err error
		tpl, err = c.engine.ParseString(source)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.cache[source] = tpl
		c.mu.Unlock()
	}
	return tpl.RenderString(bindings)
}

var (
	tagRegexp        = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>`)
	anchorRegexp     = regexp.MustCompile(`(?s)<a\s[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	blockEndRegexp   = regexp.MustCompile(`(?i)</(p|div|li|h[1-6]|tr|br)>|<br\s*/?>`)
	anyTagRegexp     = regexp.MustCompile(`<[^>]+>`)
	blankLinesRegexp = regexp.MustCompile(`\n{3,}`)
)

// htmlToPlainText produces the text/plain alternative from the rendered HTML
// body. Anchors keep their targets in parentheses.
func htmlToPlainText(html string) string {
	s := tagRegexp.ReplaceAllString(html, "")
	s = anchorRegexp.ReplaceAllString(s, "$2 ($1)")
	s = blockEndRegexp.ReplaceAllString(s, "\n")
	s = anyTagRegexp.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = blankLinesRegexp.ReplaceAllString(s, "\n\n")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
