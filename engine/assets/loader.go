package assets

import "github.com/spaghettifunk/portalis/engine/renderer/metadata"

// Loader reads one kind of asset from disk. params is loader specific and
// may be nil.
type Loader interface {
	Load(path string, params interface{}) (*metadata.Resource, error)
}
