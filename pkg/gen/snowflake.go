package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(NewNode))

// NewNode provides the shared snowflake node used for all row IDs.
func NewNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
