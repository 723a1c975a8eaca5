package fertilizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

var pricePrinter = message.NewPrinter(language.English)

// NPKRatio is the N-P-K nutrient content of a product in percent.
type NPKRatio [3]int

// ParseNPK parses the conventional "N-P-K" notation, e.g. "18-46-0".
func ParseNPK(s string) (NPKRatio, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return NPKRatio{}, fmt.Errorf("npk ratio %q: expected three dash-separated integers", s)
	}
	var r NPKRatio
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return NPKRatio{}, fmt.Errorf("npk ratio %q: invalid component %q", s, p)
		}
		r[i] = n
	}
	return r, nil
}

func (r NPKRatio) String() string {
	return fmt.Sprintf("%d-%d-%d", r[0], r[1], r[2])
}

// UnmarshalYAML accepts the "N-P-K" string form.
func (r *NPKRatio) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseNPK(node.Value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Product is a fertilizer the engine can recommend.
type Product struct {
	Name          string   `yaml:"name"`
	Short         string   `yaml:"short"`
	NPK           NPKRatio `yaml:"npk"`
	PriceINRPerMT int      `yaml:"price_inr_per_mt"`
	Scheme        string   `yaml:"scheme"`
	Rate          string   `yaml:"rate"`
}

// PriceNote renders the indicative price, e.g. "INR 27,000/MT".
func (p Product) PriceNote() string {
	return pricePrinter.Sprintf("INR %d/MT", p.PriceINRPerMT)
}

// ProductRole is the slot a product fills in a recommendation.
type ProductRole string

const (
	RoleNitrogen         ProductRole = "nitrogen"
	RolePhosphorus       ProductRole = "phosphorus"
	RolePhosphorusBudget ProductRole = "phosphorus_budget"
	RolePotassium        ProductRole = "potassium"
	RoleMaintenance      ProductRole = "maintenance"
)

// ProductRoles lists every role in catalogue order.
var ProductRoles = [...]ProductRole{RoleNitrogen, RolePhosphorus, RolePhosphorusBudget, RolePotassium, RoleMaintenance}

// ProductCatalogue assigns one product to each recommendation role.
type ProductCatalogue struct {
	Nitrogen         Product `yaml:"nitrogen"`
	Phosphorus       Product `yaml:"phosphorus"`
	PhosphorusBudget Product `yaml:"phosphorus_budget"`
	Potassium        Product `yaml:"potassium"`
	Maintenance      Product `yaml:"maintenance"`
}

// Slot returns a pointer to the product filling role, or nil for an unknown role.
func (c *ProductCatalogue) Slot(role ProductRole) *Product {
	switch role {
	case RoleNitrogen:
		return &c.Nitrogen
	case RolePhosphorus:
		return &c.Phosphorus
	case RolePhosphorusBudget:
		return &c.PhosphorusBudget
	case RolePotassium:
		return &c.Potassium
	case RoleMaintenance:
		return &c.Maintenance
	default:
		return nil
	}
}

// Validate checks that every role is filled with a named, priced product.
func (c *ProductCatalogue) Validate() error {
	var errs []error
	for _, role := range ProductRoles {
		p := c.Slot(role)
		if p.Name == "" || p.Short == "" {
			errs = append(errs, fmt.Errorf("product role %s: name and short name are required", role))
		}
		if p.PriceINRPerMT <= 0 {
			errs = append(errs, fmt.Errorf("product role %s: price must be positive", role))
		}
		if p.Rate == "" {
			errs = append(errs, fmt.Errorf("product role %s: application rate is required", role))
		}
	}
	return errors.Join(errs...)
}
