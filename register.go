package kvmap

import (
	"go.k6.io/k6/js/modules"

	"github.com/oshokin/xk6-kvmap/kv"
)

// init registers the kvmap module with the k6 runtime.
func init() {
	modules.Register("k6/x/kvmap", kv.New())
}
