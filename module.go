// Package omnirectify is a Viam module that rectifies images from omnidirectional cameras
// calibrated with OCamCalib into perspective views.
package omnirectify

import (
	"go.viam.com/rdk/resource"
)

var NamespaceFamily = resource.NewModelFamily("erh", "omnirectify")
