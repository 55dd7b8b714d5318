package tenant

import (
	"strings"
	"time"
	"unicode"
)

// Catalog holds the plan data used when provisioning tenants. It is
// configuration, not logic: the mapping comes from the environment.
type Catalog struct {
	seatLimits   map[string]int
	defaultSeats int
	defaultPlan  string
	term         time.Duration
	domainSuffix string
}

type CatalogConfig struct {
	SeatLimits       map[string]int
	DefaultSeatLimit int
	DefaultPlan      string
	SubscriptionTerm time.Duration
	DomainSuffix     string
}

func NewCatalog(cfg CatalogConfig) *Catalog {
	limits := make(map[string]int, len(cfg.SeatLimits))
	for k, v := range cfg.SeatLimits {
		limits[strings.ToLower(k)] = v
	}
	c := &Catalog{
		seatLimits:   limits,
		defaultSeats: cfg.DefaultSeatLimit,
		defaultPlan:  strings.ToLower(strings.TrimSpace(cfg.DefaultPlan)),
		term:         cfg.SubscriptionTerm,
		domainSuffix: strings.Trim(cfg.DomainSuffix, "."),
	}
	if c.defaultSeats <= 0 {
		c.defaultSeats = 5
	}
	if c.defaultPlan == "" {
		c.defaultPlan = "basic"
	}
	if c.term <= 0 {
		c.term = 365 * 24 * time.Hour
	}
	if c.domainSuffix == "" {
		c.domainSuffix = "crm.io"
	}
	return c
}

// DefaultCatalog is the stock basic/pro/enterprise table.
func DefaultCatalog() *Catalog {
	return NewCatalog(CatalogConfig{
		SeatLimits:       map[string]int{"basic": 5, "pro": 25, "enterprise": 999},
		DefaultSeatLimit: 5,
	})
}

// Plan normalizes a requested plan name, falling back to the default plan.
func (c *Catalog) Plan(requested string) string {
	p := strings.ToLower(strings.TrimSpace(requested))
	if p == "" {
		return c.defaultPlan
	}
	return p
}

// SeatLimit returns the maximum users for plan; unknown plans get the default.
func (c *Catalog) SeatLimit(plan string) int {
	if n, ok := c.seatLimits[c.Plan(plan)]; ok {
		return n
	}
	return c.defaultSeats
}

// Expiry returns when a subscription started at now ends.
func (c *Catalog) Expiry(now time.Time) time.Time {
	return now.Add(c.term)
}

// Domain derives the tenant domain from a company name, e.g.
// "Acme Corp" -> "acme-corp.crm.io".
func (c *Catalog) Domain(company string) string {
	return Slug(company) + "." + c.domainSuffix
}

// Slug lowercases s, turns whitespace and punctuation runs into single
// dashes and drops anything else that is not a letter or digit.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "tenant"
	}
	return out
}
