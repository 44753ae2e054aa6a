package main

import (
	"bytes"
	"fmt"
	"os"

	"credit-workers/internal/models"
	irc "credit-workers/internal/workers/catalog/index-rank-catalog"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedFile is a YAML catalog: membership tiers and credit products.
type SeedFile struct {
	Ranks    []irc.RankInput `yaml:"ranks"`
	Products []productSeed   `yaml:"products"`
}

type productSeed struct {
	ID            string          `yaml:"id"`
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description"`
	Category      string          `yaml:"category"`
	Subcategory   string          `yaml:"subcategory"`
	Currency      string          `yaml:"currency"`
	Term          string          `yaml:"term"`
	MinimumAmount decimal.Decimal `yaml:"minimumAmount"`
	MaximumAmount decimal.Decimal `yaml:"maximumAmount"`
	MinimumRate   decimal.Decimal `yaml:"minimumRate"`
	MaximumRate   decimal.Decimal `yaml:"maximumRate"`
	Requirements  []string        `yaml:"requirements"`
	Features      []string        `yaml:"features"`
	Benefits      []string        `yaml:"benefits"`
	Active        *bool           `yaml:"active"` // defaults to true
}

func (p productSeed) entry() models.ProductCatalogEntry {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return models.ProductCatalogEntry{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Subcategory:   p.Subcategory,
		Currency:      p.Currency,
		Term:          p.Term,
		MinimumAmount: p.MinimumAmount,
		MaximumAmount: p.MaximumAmount,
		MinimumRate:   p.MinimumRate,
		MaximumRate:   p.MaximumRate,
		Requirements:  p.Requirements,
		Features:      p.Features,
		Benefits:      p.Benefits,
		Active:        active,
	}
}

// ProductEntries converts the product section to catalog entries.
func (s *SeedFile) ProductEntries() []models.ProductCatalogEntry {
	out := make([]models.ProductCatalogEntry, 0, len(s.Products))
	for _, p := range s.Products {
		out = append(out, p.entry())
	}
	return out
}

// LoadSeed reads a seed file. Unknown keys are rejected so typos surface early.
func LoadSeed(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var seed SeedFile
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// chunk splits ranks into batches the rank indexer accepts.
func chunk(ranks []irc.RankInput, size int) [][]irc.RankInput {
	if size <= 0 {
		size = len(ranks)
	}
	var out [][]irc.RankInput
	for start := 0; start < len(ranks); start += size {
		end := start + size
		if end > len(ranks) {
			end = len(ranks)
		}
		out = append(out, ranks[start:end])
	}
	return out
}
