package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"feedwatch/internal/domain/entity"
)

// Fixtures is the seed file layout.
type Fixtures struct {
	Publishers []PublisherFixture `yaml:"publishers"`
}

type PublisherFixture struct {
	Title         string                `yaml:"title"`
	City          string                `yaml:"city"`
	Endpoint      string                `yaml:"endpoint"`
	Active        *bool                 `yaml:"active"`
	Subscriptions []SubscriptionFixture `yaml:"subscriptions"`
	Credentials   []CredentialsFixture  `yaml:"credentials"`
}

type SubscriptionFixture struct {
	Channel string `yaml:"channel"`
	Address string `yaml:"address"`
}

// CredentialsFixture values are expanded with os.ExpandEnv so secrets can
// stay out of the file.
type CredentialsFixture struct {
	Channel    string `yaml:"channel"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

// LoadFixtures reads and parses a seed file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures parses seed YAML and validates every record.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Publishers) == 0 {
		return nil, errors.New("fixtures contain no publishers")
	}

	var errs []error
	for i := range f.Publishers {
		p := &f.Publishers[i]
		if err := p.publisher().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("publishers[%d]: %w", i, err))
		}
		for j, s := range p.Subscriptions {
			if !entity.IsKnownChannel(s.Channel) {
				errs = append(errs, fmt.Errorf("publishers[%d].subscriptions[%d]: unsupported channel %q", i, j, s.Channel))
			}
			if s.Address == "" {
				errs = append(errs, fmt.Errorf("publishers[%d].subscriptions[%d]: address is required", i, j))
			}
		}
		for j := range p.Credentials {
			c := &p.Credentials[j]
			if !entity.IsKnownChannel(c.Channel) {
				errs = append(errs, fmt.Errorf("publishers[%d].credentials[%d]: unsupported channel %q", i, j, c.Channel))
			}
			c.AccountSID = os.ExpandEnv(c.AccountSID)
			c.AuthToken = os.ExpandEnv(c.AuthToken)
			c.FromNumber = os.ExpandEnv(c.FromNumber)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &f, nil
}

func (p PublisherFixture) publisher() *entity.Publisher {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return &entity.Publisher{
		Title:    p.Title,
		City:     p.City,
		Endpoint: p.Endpoint,
		Active:   active,
	}
}
