package doctor

import (
	"context"
	"errors"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/portbus/internal/core/config"
)

// ConfigCheck reports the effective transport and scheduler settings, or the
// validation errors and warnings that stand in their way.
type ConfigCheck struct {
	config     *config.Config
	configPath string
}

// NewConfigCheck creates a configuration check for cfg, loaded from configPath.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{config: cfg, configPath: configPath}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	if c.config == nil {
		result.Items = []CheckItem{{Label: "load", Status: StatusFail, Detail: "configuration not loaded"}}
		return result
	}

	result.Items = ConfigProblems(c.config, c.configPath)
	if len(result.Items) == 0 {
		result.Items = SettingItems(c.config)
	}
	return result
}

// ConfigProblems lists validation errors as failures and warnings as warnings.
// Labels are the yaml path of the offending setting.
func ConfigProblems(cfg *config.Config, configPath string) []CheckItem {
	var items []CheckItem

	if err := cfg.ValidateDeep(configPath); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			fieldErrs = criterio.FieldErrors{{Err: err}}
		}
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "validation"
			}
			items = append(items, CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error()})
		}
	}

	for _, w := range cfg.Warnings() {
		items = append(items, CheckItem{
			Label:  strings.ToLower(w.Category) + "." + w.Item,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return items
}

// SettingItems reports each effective setting as a passing item.
func SettingItems(cfg *config.Config) []CheckItem {
	settings := cfg.Settings()
	items := make([]CheckItem, 0, len(settings))
	for _, s := range settings {
		items = append(items, CheckItem{Label: s.Key, Status: StatusPass, Detail: s.Value})
	}
	return items
}
