package product

import (
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Price       string        `yaml:"price"`
	Images      []string      `yaml:"images"`
	CategoryID  *int          `yaml:"category_id"`
	Brand       string        `yaml:"brand"`
	Inventory   int           `yaml:"inventory"`
	Variants    []seedVariant `yaml:"variants"`
}

type seedVariant struct {
	SKU       string `yaml:"sku"`
	Size      string `yaml:"size"`
	Color     string `yaml:"color"`
	Price     string `yaml:"price"`
	Inventory int    `yaml:"inventory"`
}

// LoadSeed decodes a YAML catalog. Prices are strings so they parse into
// exact decimals.
func LoadSeed(r io.Reader) ([]Product, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}

	out := make([]Product, 0, len(f.Products))
	for i, sp := range f.Products {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "product %d (%s): price", i, sp.Name)
		}
		p := Product{
			Name:        sp.Name,
			Description: sp.Description,
			Price:       price,
			Images:      sp.Images,
			CategoryID:  sp.CategoryID,
			Brand:       sp.Brand,
			Inventory:   sp.Inventory,
			Variants:    make([]Variant, 0, len(sp.Variants)),
		}
		for _, sv := range sp.Variants {
			v := Variant{SKU: sv.SKU, Size: sv.Size, Color: sv.Color, Inventory: sv.Inventory}
			if sv.Price != "" {
				vp, err := decimal.NewFromString(sv.Price)
				if err != nil {
					return nil, errors.Wrapf(err, "product %d (%s): variant %s price", i, sp.Name, sv.SKU)
				}
				v.Price = decimal.NewNullDecimal(vp)
			}
			p.Variants = append(p.Variants, v)
		}
		if p.Images == nil {
			p.Images = []string{}
		}
		out = append(out, p)
	}
	return out, nil
}
