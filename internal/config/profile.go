package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"fintrack/internal/core"
)

// Profile holds the defaults a new user's ledger starts with.
type Profile struct {
	Budgets    []BudgetProfile `mapstructure:"budgets"`
	Goal       *GoalProfile    `mapstructure:"goal"`
	Categories CategoryProfile `mapstructure:"categories"`
}

// BudgetProfile is a list entry rather than a map key because viper folds
// keys to lower case.
type BudgetProfile struct {
	Category string `mapstructure:"category"`
	Amount   string `mapstructure:"amount"`
}

type GoalProfile struct {
	Name   string `mapstructure:"name"`
	Target string `mapstructure:"target"`
}

type CategoryProfile struct {
	Income  []string `mapstructure:"income"`
	Expense []string `mapstructure:"expense"`
}

// LoadProfile reads a profile file. The format follows the extension (toml,
// yaml or json); an empty path yields an empty profile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		v.SetConfigType("toml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	if _, err := p.Seed(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return &p, nil
}

// Seed builds the initial snapshot described by the profile.
func (p *Profile) Seed() (*core.Snapshot, error) {
	s := core.NewSnapshot()
	if p == nil {
		return s, nil
	}

	for _, b := range p.Budgets {
		amount, err := core.ParseAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("budget %q: %w", b.Category, err)
		}
		if err := s.SetBudget(b.Category, amount); err != nil {
			return nil, fmt.Errorf("budget %q: %w", b.Category, err)
		}
	}

	if p.Goal != nil && p.Goal.Name != "" {
		target, err := core.ParseAmount(p.Goal.Target)
		if err != nil {
			return nil, fmt.Errorf("goal target: %w", err)
		}
		if err := s.SetGoal(p.Goal.Name, target); err != nil {
			return nil, fmt.Errorf("goal: %w", err)
		}
	}

	for _, name := range p.Categories.Income {
		if err := s.AddCategory(core.Income, name); err != nil {
			return nil, fmt.Errorf("income category %q: %w", name, err)
		}
	}
	for _, name := range p.Categories.Expense {
		if err := s.AddCategory(core.Expense, name); err != nil {
			return nil, fmt.Errorf("expense category %q: %w", name, err)
		}
	}
	return s, nil
}
