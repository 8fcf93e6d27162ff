package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// flexScalar decodes a YAML value that may be written either as a plain
// scalar or as a single-element list — the configuration format wraps
// secrets and paths in brackets ("prod_token: [\"...\"]"), and both
// spellings must load identically.
type flexScalar string

func (f *flexScalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		if len(items) > 1 {
			return fmt.Errorf("expected a single value, got %d", len(items))
		}
		if len(items) == 1 {
			*f = flexScalar(items[0])
		}
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*f = flexScalar(s)
	return nil
}

// The custom unmarshalers below overlay only keys present in the YAML,
// so fields absent from the file keep their defaults while explicitly
// empty values still clear them.

func (b *BotToken) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ProdToken *flexScalar `yaml:"prod_token"`
		DevToken  *flexScalar `yaml:"dev_bot_token"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.ProdToken != nil {
		b.ProdToken = string(*raw.ProdToken)
	}
	if raw.DevToken != nil {
		b.DevToken = string(*raw.DevToken)
	}
	return nil
}

func (a *AccessControl) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		AllowedUserIDs  []int64     `yaml:"allowed_user_ids"`
		AllowedAdminIDs []int64     `yaml:"allowed_admins_ids"`
		AuthSalt        *flexScalar `yaml:"auth_salt"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.AllowedUserIDs != nil {
		a.AllowedUserIDs = raw.AllowedUserIDs
	}
	if raw.AllowedAdminIDs != nil {
		a.AllowedAdminIDs = raw.AllowedAdminIDs
	}
	if raw.AuthSalt != nil {
		a.AuthSalt = string(*raw.AuthSalt)
	}
	return nil
}

func (d *Docker) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Host   *flexScalar `yaml:"host"`
		Engine *flexScalar `yaml:"engine"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Host != nil {
		d.Host = string(*raw.Host)
	}
	if raw.Engine != nil {
		d.Engine = string(*raw.Engine)
	}
	return nil
}

func (w *WebhookConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Cert    *flexScalar `yaml:"cert"`
		CertKey *flexScalar `yaml:"cert_key"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Cert != nil {
		w.Cert = string(*raw.Cert)
	}
	if raw.CertKey != nil {
		w.CertKey = string(*raw.CertKey)
	}
	return nil
}
