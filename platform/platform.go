package platform

import (
	"fmt"
	goruntime "runtime"
	"strings"

	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/interop"
)

// Platform is the per-target policy applied when talking to the engine.
type Platform struct {
	Name string
	// DenyList names render methods never published on this platform.
	DenyList []string
	// ThreadPoolSize is the hint passed in InitialisationInfo.
	ThreadPoolSize int32
}

var (
	Desktop = Platform{
		Name:           "desktop",
		ThreadPoolSize: interop.ThreadPoolDefault,
	}
	// Mobile excludes InstancedCube.
	Mobile = Platform{
		Name:           "mobile",
		DenyList:       []string{"InstancedCube"},
		ThreadPoolSize: interop.ThreadPoolDefault,
	}
	// Web builds run the engine single-threaded.
	Web = Platform{
		Name:           "web",
		ThreadPoolSize: interop.ThreadPoolNone,
	}
)

var known = []Platform{Desktop, Mobile, Web}

// Current returns the platform for the running GOOS.
func Current() Platform {
	return forGOOS(goruntime.GOOS)
}

func forGOOS(goos string) Platform {
	switch goos {
	case "android", "ios":
		return Mobile
	case "js", "wasip1":
		return Web
	default:
		return Desktop
	}
}

// ByName returns a known platform by case-insensitive name. An empty name
// selects Current.
func ByName(name string) (Platform, error) {
	if name == "" {
		return Current(), nil
	}
	for _, p := range known {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Platform{}, errors.NotFound(errors.PhaseConfig, "platform", name)
}

func (p Platform) String() string {
	return fmt.Sprintf("%s(deny=%v, threads=%d)", p.Name, p.DenyList, p.ThreadPoolSize)
}

// Support reports whether the process may call into the engine at all.
type Support interface {
	Supported() bool
}

// SupportFunc adapts a function to Support.
type SupportFunc func() bool

func (f SupportFunc) Supported() bool { return f() }

var (
	// Always permits engine calls.
	Always Support = SupportFunc(func() bool { return true })
	// Never forbids engine calls.
	Never Support = SupportFunc(func() bool { return false })
)
