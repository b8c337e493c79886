// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/midonet/internal/errors"
)

func decodeHCLFile(path string, target interface{}) error {
	if err := hclsimple.DecodeFile(path, nil, target); err != nil {
		return errors.Wrap(err, errors.KindValidation, "decode topology fixture")
	}
	return nil
}
