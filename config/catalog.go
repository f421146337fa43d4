package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

type SubDepartmentTemplate struct {
	Code            string `yaml:"code"`
	Department      string `yaml:"department"`
	RoleDescription string `yaml:"role_descrptn"`
	Inkrement       string `yaml:"inkrement"`
}

type CostCategoryTemplate struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	MatCode string `yaml:"mat_code"`
}

// Catalog is the static reference data every project is built from.
type Catalog struct {
	DefaultHourlyRate string                  `yaml:"default_hourly_rate"`
	Departments       []string                `yaml:"departments"`
	SubDepartments    []SubDepartmentTemplate `yaml:"sub_departments"`
	CostCategories    []CostCategoryTemplate  `yaml:"cost_categories"`
}

var (
	catalogOnce sync.Once
	catalog     *Catalog
	catalogErr  error
)

// GetCatalog loads PSR_CATALOG_FILE when set, otherwise the embedded catalog.
func GetCatalog() (*Catalog, error) {
	catalogOnce.Do(func() {
		data := embeddedCatalog
		if path := strings.TrimSpace(os.Getenv("PSR_CATALOG_FILE")); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				catalogErr = fmt.Errorf("read catalog %s: %w", path, err)
				return
			}
			data = b
		}
		catalog, catalogErr = ParseCatalog(data)
	})
	return catalog, catalogErr
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) check() error {
	if len(c.Departments) == 0 {
		return fmt.Errorf("catalog: no departments")
	}
	depts := make(map[string]bool, len(c.Departments))
	for _, d := range c.Departments {
		if depts[d] {
			return fmt.Errorf("catalog: duplicate department %q", d)
		}
		depts[d] = true
	}
	codes := make(map[string]bool, len(c.SubDepartments))
	for _, s := range c.SubDepartments {
		if s.Code == "" {
			return fmt.Errorf("catalog: sub-department without code")
		}
		if !depts[s.Department] {
			return fmt.Errorf("catalog: sub-department %q references unknown department %q", s.Code, s.Department)
		}
		if codes[s.Code] {
			return fmt.Errorf("catalog: duplicate sub-department %q", s.Code)
		}
		codes[s.Code] = true
	}
	cats := make(map[string]bool, len(c.CostCategories))
	mats := make(map[string]bool, len(c.CostCategories))
	for _, cc := range c.CostCategories {
		if cc.Code == "" {
			return fmt.Errorf("catalog: cost category without code")
		}
		if cats[cc.Code] {
			return fmt.Errorf("catalog: duplicate cost category %q", cc.Code)
		}
		cats[cc.Code] = true
		if m := strings.ToLower(strings.TrimSpace(cc.MatCode)); m != "" {
			if mats[m] {
				return fmt.Errorf("catalog: duplicate mat_code %q", cc.MatCode)
			}
			mats[m] = true
		}
	}
	return nil
}

func (c *Catalog) SubDepartmentsOf(department string) []SubDepartmentTemplate {
	var result []SubDepartmentTemplate
	for _, s := range c.SubDepartments {
		if s.Department == department {
			result = append(result, s)
		}
	}
	return result
}
