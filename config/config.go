// Package config loads daemon configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// FeeEntryConfig is one fee rule seeded at startup. Empty From/To mean
// the wildcard matcher.
type FeeEntryConfig struct {
	From                string `yaml:"from"`
	To                  string `yaml:"to"`
	Percentage          int64  `yaml:"percentage"`
	Destination         string `yaml:"destination"`
	DoCallback          bool   `yaml:"do_callback"`
	DoLiquify           bool   `yaml:"do_liquify"`
	DoSwapForStable     bool   `yaml:"do_swap_for_stable"`
	SwapOrLiquifyAmount string `yaml:"swap_or_liquify_amount"`
}

// Config holds all daemon configuration.
type Config struct {
	Token struct {
		Name          string `yaml:"name"`
		Symbol        string `yaml:"symbol"`
		Address       string `yaml:"address"`
		Owner         string `yaml:"owner"`
		InitialSupply string `yaml:"initial_supply"`
		MinTxAmount   string `yaml:"min_tx_amount"`
	} `yaml:"token"`
	FeeManager struct {
		Address       string           `yaml:"address"`
		StableToken   string           `yaml:"stable_token"`
		WrappedNative string           `yaml:"wrapped_native"`
		Entries       []FeeEntryConfig `yaml:"entries"`
	} `yaml:"fee_manager"`
	Staking struct {
		Address        string `yaml:"address"`
		ShareCapacity  string `yaml:"share_capacity"`
		MaxPoolBalance string `yaml:"max_pool_balance"`
	} `yaml:"staking"`
	Schedule struct {
		PoolUpdateCron string `yaml:"pool_update_cron"`
		SnapshotCron   string `yaml:"snapshot_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Query struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"query"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("WESENDIT_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("WESENDIT_QUERY_LISTEN"); v != "" {
		cfg.Query.ListenAddr = v
	}
	if v := os.Getenv("WESENDIT_POOL_UPDATE_CRON"); v != "" {
		cfg.Schedule.PoolUpdateCron = v
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Token.Name == "" {
		c.Token.Name = "WeSendit"
	}
	if c.Token.Symbol == "" {
		c.Token.Symbol = "WSI"
	}
	if c.Token.InitialSupply == "" {
		// 1.5 billion tokens at 18 decimals.
		c.Token.InitialSupply = "1500000000000000000000000000"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "wesendit.db"
	}
	if c.Query.ListenAddr == "" {
		c.Query.ListenAddr = ":8080"
	}
	if c.Schedule.PoolUpdateCron == "" {
		// Once per reward period, on the half day.
		c.Schedule.PoolUpdateCron = "0 0 0,12 * * *"
	}
	if c.Schedule.SnapshotCron == "" {
		c.Schedule.SnapshotCron = "0 */5 * * * *"
	}
}

// Validate checks addresses and amounts parse.
func (c *Config) Validate() error {
	required := map[string]string{
		"token.address":       c.Token.Address,
		"token.owner":         c.Token.Owner,
		"fee_manager.address": c.FeeManager.Address,
		"staking.address":     c.Staking.Address,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("config: %s is required", field)
		}
		if !common.IsHexAddress(value) {
			return fmt.Errorf("config: %s: bad address %q", field, value)
		}
	}
	for _, opt := range []struct{ field, value string }{
		{"fee_manager.stable_token", c.FeeManager.StableToken},
		{"fee_manager.wrapped_native", c.FeeManager.WrappedNative},
	} {
		if opt.value != "" && !common.IsHexAddress(opt.value) {
			return fmt.Errorf("config: %s: bad address %q", opt.field, opt.value)
		}
	}
	if _, err := parseAmount(c.Token.InitialSupply); err != nil {
		return fmt.Errorf("config: token.initial_supply: %w", err)
	}
	for _, amt := range []struct{ field, value string }{
		{"token.min_tx_amount", c.Token.MinTxAmount},
		{"staking.share_capacity", c.Staking.ShareCapacity},
		{"staking.max_pool_balance", c.Staking.MaxPoolBalance},
	} {
		if amt.value == "" {
			continue
		}
		if _, err := parseAmount(amt.value); err != nil {
			return fmt.Errorf("config: %s: %w", amt.field, err)
		}
	}
	for i, e := range c.FeeManager.Entries {
		if e.Percentage <= 0 || e.Percentage > 100_000 {
			return fmt.Errorf("config: fee entry %d: percentage %d outside (0, 100000]", i, e.Percentage)
		}
		if !common.IsHexAddress(e.Destination) {
			return fmt.Errorf("config: fee entry %d: bad destination %q", i, e.Destination)
		}
		for _, matcher := range []string{e.From, e.To} {
			if matcher != "" && !common.IsHexAddress(matcher) {
				return fmt.Errorf("config: fee entry %d: bad matcher %q", i, matcher)
			}
		}
		if e.SwapOrLiquifyAmount != "" {
			if _, err := parseAmount(e.SwapOrLiquifyAmount); err != nil {
				return fmt.Errorf("config: fee entry %d: swap_or_liquify_amount: %w", i, err)
			}
		}
	}
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	return v, nil
}

// Amount parses a decimal token amount from the config; empty returns
// zero.
func Amount(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, _ := new(big.Int).SetString(s, 10)
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Matcher parses a fee matcher address; empty means the wildcard.
func Matcher(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
