package affiliate

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/models"
	"github.com/cppla/affiliate/utils"
)

// Site is the public identity referral links point at.
type Site struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// SiteResolver finds the site a request was made against.
type SiteResolver interface {
	Resolve(r *http.Request) (Site, error)
}

// StaticSite serves the configured site, falling back to the request host when no
// domain is configured.
type StaticSite struct {
	Domain string
	Name   string
}

func NewStaticSite(cfg config.SiteConfig) StaticSite {
	return StaticSite{Domain: strings.TrimSpace(cfg.Domain), Name: utils.SanitizeText(cfg.Name)}
}

func (s StaticSite) Resolve(r *http.Request) (Site, error) {
	site := Site{Domain: s.Domain, Name: s.Name}
	if site.Domain == "" {
		if r == nil || r.Host == "" {
			return Site{}, fmt.Errorf("no site domain configured and no request host")
		}
		scheme := "http"
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		site.Domain = scheme + "://" + r.Host + "/"
	}
	if site.Name == "" {
		site.Name = utils.SanitizeText(hostOf(site.Domain))
	}
	return site, nil
}

func hostOf(domain string) string {
	host := domain
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.TrimSuffix(host, "/")
}

// Renderer builds referral links and embeddable markup. It does not escape its inputs.
type Renderer struct {
	paramName string
}

func NewRenderer(cfg config.AffiliateConfig) *Renderer {
	return &Renderer{paramName: cfg.ParamName}
}

func (r *Renderer) Link(code string, site Site) string {
	return fmt.Sprintf("%s?%s=%s", site.Domain, r.paramName, code)
}

func (r *Renderer) Anchor(code string, site Site) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, r.Link(code, site), site.Name)
}

func (r *Renderer) BannerAnchor(code string, site Site, b models.Banner) string {
	domain := strings.TrimSuffix(site.Domain, "/")
	return fmt.Sprintf(`<a href="%s"><img src="%s%s" title="%s" alt="%s"/></a>`,
		r.Link(code, site), domain, b.Image, b.Caption, b.Caption)
}

// RequestScope memoizes the site and rendered links for the lifetime of one request.
// It is not safe for concurrent use; create one per request.
type RequestScope struct {
	req      *http.Request
	resolver SiteResolver
	renderer *Renderer

	site    *Site
	links   map[string]string
	anchors map[string]string
}

func NewRequestScope(r *http.Request, resolver SiteResolver, renderer *Renderer) *RequestScope {
	return &RequestScope{
		req:      r,
		resolver: resolver,
		renderer: renderer,
		links:    make(map[string]string),
		anchors:  make(map[string]string),
	}
}

// Site resolves the request's site on first use.
func (s *RequestScope) Site() (Site, error) {
	if s.site != nil {
		return *s.site, nil
	}
	site, err := s.resolver.Resolve(s.req)
	if err != nil {
		return Site{}, err
	}
	s.site = &site
	return site, nil
}

func (s *RequestScope) Link(code string) (string, error) {
	if link, ok := s.links[code]; ok {
		return link, nil
	}
	site, err := s.Site()
	if err != nil {
		return "", err
	}
	link := s.renderer.Link(code, site)
	s.links[code] = link
	return link, nil
}

func (s *RequestScope) Anchor(code string) (string, error) {
	if a, ok := s.anchors[code]; ok {
		return a, nil
	}
	site, err := s.Site()
	if err != nil {
		return "", err
	}
	a := s.renderer.Anchor(code, site)
	s.anchors[code] = a
	return a, nil
}

func (s *RequestScope) BannerAnchor(code string, b models.Banner) (string, error) {
	site, err := s.Site()
	if err != nil {
		return "", err
	}
	return s.renderer.BannerAnchor(code, site, b), nil
}
