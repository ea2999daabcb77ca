package pty

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kballard/go-shellquote"
)

// Wire names of the session kinds.
const (
	TypeInteractiveExec = "ecs_exec"
	TypeRemoteShell     = "ssm_session"
	TypePortForward     = "ssm_port_forwarding"
	TypeLocalShell      = "local"
)

const (
	documentPortForward           = "AWS-StartPortForwardingSession"
	documentPortForwardRemoteHost = "AWS-StartPortForwardingSessionToRemoteHost"
)

// Kind selects what a session runs. The set of variants is closed: only the
// types in this file implement it, and BuildCommand switches over all of them.
type Kind interface {
	sessionKind() string
}

// InteractiveExec opens an interactive shell inside a running container.
type InteractiveExec struct {
	Cluster   string
	Task      string
	Container string
	Profile   string
	Region    string
}

// RemoteShell opens a managed shell session on an instance.
type RemoteShell struct {
	Instance string
	Profile  string
	Region   string
}

// PortForward tunnels a local port to the instance, or through the instance
// to RemoteHost when it is set.
type PortForward struct {
	Instance   string
	LocalPort  uint16
	RemotePort uint16
	RemoteHost string
	Profile    string
	Region     string
}

// LocalShell runs the configured shell on this machine.
type LocalShell struct{}

func (InteractiveExec) sessionKind() string { return TypeInteractiveExec }
func (RemoteShell) sessionKind() string     { return TypeRemoteShell }
func (PortForward) sessionKind() string     { return TypePortForward }
func (LocalShell) sessionKind() string      { return TypeLocalShell }

// KindSpec is the flat wire form of a Kind, tagged by Type. It is what
// requests, presets and session snapshots carry.
type KindSpec struct {
	Type       string `json:"type" yaml:"type"`
	Cluster    string `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Task       string `json:"task,omitempty" yaml:"task,omitempty"`
	Container  string `json:"container,omitempty" yaml:"container,omitempty"`
	InstanceID string `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	LocalPort  uint16 `json:"local_port,omitempty" yaml:"local_port,omitempty"`
	RemotePort uint16 `json:"remote_port,omitempty" yaml:"remote_port,omitempty"`
	RemoteHost string `json:"remote_host,omitempty" yaml:"remote_host,omitempty"`
	Profile    string `json:"profile,omitempty" yaml:"profile,omitempty"`
	Region     string `json:"region,omitempty" yaml:"region,omitempty"`
}

// Kind validates the spec and converts it to its variant.
func (s KindSpec) Kind() (Kind, error) {
	switch s.Type {
	case TypeInteractiveExec:
		if s.Cluster == "" || s.Task == "" || s.Container == "" {
			return nil, errors.New("ecs_exec requires cluster, task and container")
		}
		return InteractiveExec{Cluster: s.Cluster, Task: s.Task, Container: s.Container, Profile: s.Profile, Region: s.Region}, nil
	case TypeRemoteShell:
		if s.InstanceID == "" {
			return nil, errors.New("ssm_session requires instance_id")
		}
		return RemoteShell{Instance: s.InstanceID, Profile: s.Profile, Region: s.Region}, nil
	case TypePortForward:
		if s.InstanceID == "" {
			return nil, errors.New("ssm_port_forwarding requires instance_id")
		}
		if s.LocalPort == 0 || s.RemotePort == 0 {
			return nil, errors.New("ssm_port_forwarding requires local_port and remote_port")
		}
		return PortForward{
			Instance:   s.InstanceID,
			LocalPort:  s.LocalPort,
			RemotePort: s.RemotePort,
			RemoteHost: s.RemoteHost,
			Profile:    s.Profile,
			Region:     s.Region,
		}, nil
	case TypeLocalShell:
		return LocalShell{}, nil
	case "":
		return nil, errors.New("session type is required")
	default:
		return nil, fmt.Errorf("unknown session type %q", s.Type)
	}
}

// SpecOf returns the wire form of k.
func SpecOf(k Kind) KindSpec {
	switch v := k.(type) {
	case InteractiveExec:
		return KindSpec{Type: TypeInteractiveExec, Cluster: v.Cluster, Task: v.Task, Container: v.Container, Profile: v.Profile, Region: v.Region}
	case RemoteShell:
		return KindSpec{Type: TypeRemoteShell, InstanceID: v.Instance, Profile: v.Profile, Region: v.Region}
	case PortForward:
		return KindSpec{
			Type:       TypePortForward,
			InstanceID: v.Instance,
			LocalPort:  v.LocalPort,
			RemotePort: v.RemotePort,
			RemoteHost: v.RemoteHost,
			Profile:    v.Profile,
			Region:     v.Region,
		}
	case LocalShell:
		return KindSpec{Type: TypeLocalShell}
	default:
		panic(fmt.Sprintf("pty: unhandled session kind %T", k))
	}
}

// DefaultTitle is the title used when a create request does not carry one.
func DefaultTitle(k Kind) string {
	switch v := k.(type) {
	case InteractiveExec:
		return "ECS: " + v.Container
	case RemoteShell:
		return "EC2: " + v.Instance
	case PortForward:
		return fmt.Sprintf("Port Forward: %d -> %d", v.LocalPort, v.RemotePort)
	case LocalShell:
		return "Local Shell"
	default:
		panic(fmt.Sprintf("pty: unhandled session kind %T", k))
	}
}

// CommandConfig carries the defaults BuildCommand fills in.
type CommandConfig struct {
	// AWSBinary is the cloud CLI executable. Defaults to "aws".
	AWSBinary string
	// Shell is the shell run for LocalShell and passed to --command for
	// InteractiveExec. Defaults to "/bin/sh".
	Shell string
	// Profile and Region apply when the kind leaves them empty.
	Profile string
	Region  string
}

func (c CommandConfig) withDefaults() CommandConfig {
	if c.AWSBinary == "" {
		c.AWSBinary = "aws"
	}
	if c.Shell == "" {
		c.Shell = "/bin/sh"
	}
	return c
}

// BuildCommand maps a kind to the argv of the process to spawn.
func BuildCommand(k Kind, cfg CommandConfig) ([]string, error) {
	cfg = cfg.withDefaults()

	switch v := k.(type) {
	case InteractiveExec:
		argv := []string{
			cfg.AWSBinary, "ecs", "execute-command",
			"--cluster", v.Cluster,
			"--task", v.Task,
			"--container", v.Container,
			"--interactive",
			"--command", cfg.Shell,
		}
		return appendProfileRegion(argv, cfg, v.Profile, v.Region), nil

	case RemoteShell:
		argv := []string{cfg.AWSBinary, "ssm", "start-session", "--target", v.Instance}
		return appendProfileRegion(argv, cfg, v.Profile, v.Region), nil

	case PortForward:
		argv := []string{cfg.AWSBinary, "ssm", "start-session", "--target", v.Instance}
		remote := strconv.Itoa(int(v.RemotePort))
		local := strconv.Itoa(int(v.LocalPort))
		if v.RemoteHost != "" {
			argv = append(argv,
				"--document-name", documentPortForwardRemoteHost,
				"--parameters", "host="+v.RemoteHost+",portNumber="+remote+",localPortNumber="+local,
			)
		} else {
			argv = append(argv,
				"--document-name", documentPortForward,
				"--parameters", "portNumber="+remote+",localPortNumber="+local,
			)
		}
		return appendProfileRegion(argv, cfg, v.Profile, v.Region), nil

	case LocalShell:
		argv, err := shellquote.Split(cfg.Shell)
		if err != nil {
			return nil, fmt.Errorf("parse shell %q: %w", cfg.Shell, err)
		}
		if len(argv) == 0 {
			return nil, errors.New("shell is empty")
		}
		return argv, nil

	default:
		return nil, fmt.Errorf("unhandled session kind %T", k)
	}
}

func appendProfileRegion(argv []string, cfg CommandConfig, profile, region string) []string {
	if profile == "" {
		profile = cfg.Profile
	}
	if region == "" {
		region = cfg.Region
	}
	if profile != "" {
		argv = append(argv, "--profile", profile)
	}
	if region != "" {
		argv = append(argv, "--region", region)
	}
	return argv
}
