package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the unique ID identifying the machine, falling back
// to the hostname where no machine id is available.
func MachineID() string {
	id, err := machineid.ProtectedID("splitkb")
	if err == nil {
		return id[:16]
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}
