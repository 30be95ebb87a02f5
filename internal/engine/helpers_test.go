package engine

import (
	"github.com/QuickTools-one/qr-pdf-compress/internal/preset"
)

func presetFixture() preset.Config {
	cfg, err := preset.Lookup(preset.Balanced)
	if err != nil {
		panic(err)
	}
	return cfg
}
