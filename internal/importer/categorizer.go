package importer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is used for expenses no rule matches.
const DefaultCategory = "Miscellaneous"

// CategoryRule maps description keywords to a category name.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type categoriesFile struct {
	Categories []CategoryRule `yaml:"categories"`
}

// DefaultRules is the built-in keyword table.
var DefaultRules = []CategoryRule{
	{Name: "Food", Keywords: []string{"restaurant", "cafe", "dominos", "pizza", "burger", "dine", "canteen", "kfc"}},
	{Name: "Transport", Keywords: []string{"uber", "ola", "taxi", "metro", "bus", "fuel", "petrol", "petrolpump"}},
	{Name: "Personal", Keywords: []string{"shopping", "flipkart", "amazon", "myntra", "zomato", "swiggy"}},
	{Name: "Medicine", Keywords: []string{"pharmacy", "medic", "pharmeasy", "apollo"}},
	{Name: "Investment", Keywords: []string{"mutual", "sip", "investment", "broker", "demat"}},
	{Name: "Salary", Keywords: []string{"salary", "payroll", "paytm salary", "salary credit"}},
	{Name: DefaultCategory},
}

// Categorizer guesses a category from free text. Rules are tried in order;
// the first rule with a keyword contained in the text wins.
type Categorizer struct {
	rules []CategoryRule
}

func NewCategorizer(rules []CategoryRule) *Categorizer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	normalized := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		normalized = append(normalized, CategoryRule{Name: r.Name, Keywords: kw})
	}
	return &Categorizer{rules: normalized}
}

// Guess returns DefaultCategory for blank or unmatched text.
func (c *Categorizer) Guess(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return DefaultCategory
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Name
			}
		}
	}
	return DefaultCategory
}

// ParseRules decodes a YAML document of the form
//
//	categories:
//	  - name: Food
//	    keywords: [pizza, cafe]
func ParseRules(data []byte) ([]CategoryRule, error) {
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category rules: %w", err)
	}
	for i, r := range f.Categories {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("parse category rules: entry %d has no name", i)
		}
	}
	return f.Categories, nil
}

// LoadRules reads ParseRules input from path.
func LoadRules(path string) ([]CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules: %w", err)
	}
	return ParseRules(data)
}
