/*
registry.go - Change kind registration and lookup

PURPOSE:
  Maps a stored change kind ("allocation_add", ...) to the function that
  decodes and validates its JSON payload. The scenario package only sees
  typed Changes; everything that knows about the wire shape lives here.

HOW IT WORKS:
  1. init() registers the built-in kinds from scenario.Kinds
  2. ChangeFactory.Decode looks the kind up
  3. A kind with no registration decodes to a nil payload, which replay
     skips and the API rejects

SEE ALSO:
  - change.go: Built-in decoders and validation
  - scenario/change.go: Payload types
*/
package factory

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/warp/staffing-engine/scenario"
)

// DecodeFunc decodes and validates one payload.
type DecodeFunc func(payload json.RawMessage) (any, error)

// =============================================================================
// KIND REGISTRY
// =============================================================================

var (
	kindRegistry = make(map[scenario.Kind]DecodeFunc)
	registryMu   sync.RWMutex
)

// RegisterKind adds or replaces the decoder for a kind.
func RegisterKind(kind scenario.Kind, fn DecodeFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	kindRegistry[kind] = fn
}

// LookupKind finds the decoder of a kind.
func LookupKind(kind scenario.Kind) (DecodeFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := kindRegistry[kind]
	return fn, ok
}

// ListKinds returns every registered kind, sorted.
func ListKinds() []scenario.Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]scenario.Kind, 0, len(kindRegistry))
	for k := range kindRegistry {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func init() {
	RegisterKind(scenario.KindEngineerRate, decodeAs(scenario.KindEngineerRate, validateEngineerRate))
	RegisterKind(scenario.KindProjectAdd, decodeAs(scenario.KindProjectAdd, validateProjectAdd))
	RegisterKind(scenario.KindProjectUpdate, decodeAs(scenario.KindProjectUpdate, validateProjectUpdate))
	RegisterKind(scenario.KindProjectDelete, decodeAs(scenario.KindProjectDelete, validateProjectDelete))
	RegisterKind(scenario.KindAllocationAdd, decodeAs(scenario.KindAllocationAdd, validateAllocationAdd))
	RegisterKind(scenario.KindAllocationUpdate, decodeAs(scenario.KindAllocationUpdate, validateAllocationUpdate))
	RegisterKind(scenario.KindAllocationDelete, decodeAs(scenario.KindAllocationDelete, validateAllocationDelete))
	RegisterKind(scenario.KindCellAdjust, decodeAs(scenario.KindCellAdjust, validateCellAdjust))
}
