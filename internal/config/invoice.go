package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tka-invoice/internal/invoice/format"
	"github.com/smallbiznis/tka-invoice/internal/invoice/totals"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InvoiceConfig carries the defaults applied to newly created invoices.
// Stored invoices keep the values they were created with.
type InvoiceConfig struct {
	VATPercentage  string       `mapstructure:"vatPercentage"`
	NumberTemplate string       `mapstructure:"numberTemplate"`
	DueDays        int          `mapstructure:"dueDays"`
	Issuer         IssuerConfig `mapstructure:"issuer"`
}

// IssuerConfig is the invoicing party printed on every document.
type IssuerConfig struct {
	Name           string `mapstructure:"name"`
	Address        string `mapstructure:"address"`
	City           string `mapstructure:"city"`
	Phone          string `mapstructure:"phone"`
	Email          string `mapstructure:"email"`
	NPWP           string `mapstructure:"npwp"`
	SignatoryName  string `mapstructure:"signatoryName"`
	SignatoryTitle string `mapstructure:"signatoryTitle"`
}

func DefaultInvoiceConfig() InvoiceConfig {
	return InvoiceConfig{
		VATPercentage:  totals.DefaultVATPercentage.String(),
		NumberTemplate: format.DefaultInvoiceNumberTemplate,
		DueDays:        30,
		Issuer: IssuerConfig{
			Name: "TKA Services",
			City: "Jakarta",
		},
	}
}

// VAT returns the configured percentage. Validation guarantees it parses.
func (c InvoiceConfig) VAT() decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(c.VATPercentage))
	if err != nil {
		return totals.DefaultVATPercentage
	}
	return v
}

// ErrMissingInvoiceSection is returned for a config file without an invoice
// block, e.g. one caught mid-write by an editor.
var ErrMissingInvoiceSection = errors.New("invoice config file has no invoice section")

type InvoiceConfigHolder struct {
	current  atomic.Value // holds InvoiceConfig
	v        *viper.Viper
	fromFile bool
	log      *zap.Logger
}

// NewStaticInvoiceConfigHolder returns a holder that never reloads.
func NewStaticInvoiceConfigHolder(cfg InvoiceConfig) *InvoiceConfigHolder {
	holder := &InvoiceConfigHolder{log: zap.NewNop()}
	holder.current.Store(cfg)
	return holder
}

// NewInvoiceConfigHolder reads invoice.yml and keeps watching it.
func NewInvoiceConfigHolder(cfg Config, log *zap.Logger) (*InvoiceConfigHolder, error) {
	holder, err := loadInvoiceConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	if holder.fromFile {
		holder.v.OnConfigChange(func(e fsnotify.Event) {
			holder.reload(e.Name)
		})
		holder.v.WatchConfig()
	}
	return holder, nil
}

func loadInvoiceConfig(cfg Config, log *zap.Logger) (*InvoiceConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("invoice.config")

	v := viper.New()
	if cfg.InvoiceConfigFile != "" {
		v.SetConfigFile(cfg.InvoiceConfigFile)
	} else {
		v.SetConfigName("invoice")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/tka-invoice")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvoiceConfig()
	v.SetDefault("invoice.vatPercentage", defaults.VATPercentage)
	v.SetDefault("invoice.numberTemplate", defaults.NumberTemplate)
	v.SetDefault("invoice.dueDays", defaults.DueDays)
	v.SetDefault("invoice.issuer.name", defaults.Issuer.Name)
	v.SetDefault("invoice.issuer.city", defaults.Issuer.City)

	holder := &InvoiceConfigHolder{v: v, fromFile: true, log: log}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.fromFile = false
		log.Info("invoice config file not found, using defaults")
	}

	parsed, err := holder.decode()
	if err != nil {
		return nil, err
	}
	holder.current.Store(parsed)
	return holder, nil
}

func (h *InvoiceConfigHolder) Get() InvoiceConfig {
	return h.current.Load().(InvoiceConfig)
}

// Store replaces the active configuration. Invoices already created keep
// their own VAT percentage and issuer.
func (h *InvoiceConfigHolder) Store(cfg InvoiceConfig) {
	h.current.Store(cfg)
}

// reload swaps in the file's current content. Invalid content is ignored and
// the previous configuration stays active.
func (h *InvoiceConfigHolder) reload(source string) {
	updated, err := h.decode()
	if err != nil {
		h.log.Warn("invalid invoice config ignored", zap.String("file", source), zap.Error(err))
		return
	}
	h.Store(updated)
	h.log.Info("invoice config reloaded",
		zap.String("file", source),
		zap.String("vat_percentage", updated.VATPercentage),
		zap.String("number_template", updated.NumberTemplate),
	)
}

// decode reads the invoice block. A loaded file must carry one.
func (h *InvoiceConfigHolder) decode() (InvoiceConfig, error) {
	if h.fromFile && !h.v.InConfig("invoice") {
		return InvoiceConfig{}, ErrMissingInvoiceSection
	}
	var cfg InvoiceConfig
	if err := h.v.UnmarshalKey("invoice", &cfg); err != nil {
		return InvoiceConfig{}, err
	}
	if err := validateInvoiceConfig(cfg); err != nil {
		return InvoiceConfig{}, err
	}
	return cfg, nil
}

func validateInvoiceConfig(cfg InvoiceConfig) error {
	vat, err := decimal.NewFromString(strings.TrimSpace(cfg.VATPercentage))
	if err != nil {
		return fmt.Errorf("invoice.vatPercentage %q is not a number", cfg.VATPercentage)
	}
	if vat.IsNegative() || vat.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("invoice.vatPercentage must be within 0..100")
	}
	if err := format.ValidateTemplate(cfg.NumberTemplate); err != nil {
		return err
	}
	if cfg.DueDays < 0 {
		return errors.New("invoice.dueDays cannot be negative")
	}
	return nil
}
