// Package dockertest provides an in-memory Docker API fake for tests.
//
// The fake models just enough daemon behavior for the orchestrator's
// probes and mutations: containers with a running flag, networks with
// membership, and the daemon's error on connecting an already-connected
// container. Mutation calls are counted so tests can assert that
// idempotent flows perform zero creations on repeat runs.
package dockertest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// FakeContainer is a container known to the fake daemon.
type FakeContainer struct {
	Name    string
	Running bool

	// Ports maps in-container TCP ports to published host ports,
	// reported through inspect.
	Ports map[int]int
}

// Fake implements the docker.API interface in memory.
type Fake struct {
	ContainersByName map[string]*FakeContainer
	NetworkMembers   map[string]map[string]bool // network -> container names

	ContainerCreateCalls int
	ContainerStartCalls  int
	NetworkCreateCalls   int
	ConnectCalls         int
	DisconnectCalls      int
	NetworkRemoveCalls   int
	PulledImages         []string
}

// NewFake creates an empty fake daemon.
func NewFake() *Fake {
	return &Fake{
		ContainersByName: make(map[string]*FakeContainer),
		NetworkMembers:   make(map[string]map[string]bool),
	}
}

// AddContainer seeds a container into the fake daemon.
func (f *Fake) AddContainer(c *FakeContainer) {
	f.ContainersByName[c.Name] = c
}

// AddNetwork seeds a network into the fake daemon.
func (f *Fake) AddNetwork(name string, members ...string) {
	set := make(map[string]bool)
	for _, m := range members {
		set[m] = true
	}
	f.NetworkMembers[name] = set
}

func (f *Fake) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	var out []container.Summary
	for name, c := range f.ContainersByName {
		if !options.All && !c.Running {
			continue
		}
		state := "exited"
		status := "Exited (0) 5 minutes ago"
		if c.Running {
			state = "running"
			status = "Up 5 minutes"
		}
		out = append(out, container.Summary{
			ID:     "id-" + name,
			Names:  []string{"/" + name},
			State:  state,
			Status: status,
		})
	}
	return out, nil
}

func (f *Fake) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	name := strings.TrimPrefix(containerID, "id-")
	c, ok := f.ContainersByName[name]
	if !ok {
		return container.InspectResponse{}, fmt.Errorf("no such container: %s", containerID)
	}

	ports := make(nat.PortMap)
	for containerPort, hostPort := range c.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
		ports[port] = []nat.PortBinding{{HostPort: fmt.Sprintf("%d", hostPort)}}
	}

	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:   "id-" + name,
			Name: "/" + name,
			State: &container.State{
				Running: c.Running,
			},
		},
		NetworkSettings: &container.NetworkSettings{
			NetworkSettingsBase: container.NetworkSettingsBase{
				Ports: ports,
			},
		},
	}, nil
}

func (f *Fake) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.ContainerCreateCalls++

	if _, exists := f.ContainersByName[containerName]; exists {
		return container.CreateResponse{}, fmt.Errorf("container name %q already in use", containerName)
	}

	ports := make(map[int]int)
	for port, bindings := range hostConfig.PortBindings {
		if port.Proto() != "tcp" || len(bindings) == 0 {
			continue
		}
		var hostPort int
		fmt.Sscanf(bindings[0].HostPort, "%d", &hostPort)
		ports[port.Int()] = hostPort
	}

	f.ContainersByName[containerName] = &FakeContainer{Name: containerName, Ports: ports}
	return container.CreateResponse{ID: "id-" + containerName}, nil
}

func (f *Fake) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.ContainerStartCalls++

	name := strings.TrimPrefix(containerID, "id-")
	c, ok := f.ContainersByName[name]
	if !ok {
		return fmt.Errorf("no such container: %s", containerID)
	}

	c.Running = true
	return nil
}

func (f *Fake) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	var out []network.Summary
	for name := range f.NetworkMembers {
		out = append(out, network.Summary{Name: name, ID: "net-" + name})
	}
	return out, nil
}

func (f *Fake) NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error) {
	name := strings.TrimPrefix(networkID, "net-")
	members, ok := f.NetworkMembers[name]
	if !ok {
		return network.Inspect{}, fmt.Errorf("network %s not found", networkID)
	}

	endpoints := make(map[string]network.EndpointResource)
	for m := range members {
		endpoints["ep-"+m] = network.EndpointResource{Name: m}
	}

	return network.Inspect{Name: name, ID: "net-" + name, Containers: endpoints}, nil
}

func (f *Fake) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	f.NetworkCreateCalls++

	if _, exists := f.NetworkMembers[name]; exists {
		return network.CreateResponse{}, fmt.Errorf("network %s already exists", name)
	}

	f.NetworkMembers[name] = make(map[string]bool)
	return network.CreateResponse{ID: "net-" + name}, nil
}

func (f *Fake) NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error {
	f.ConnectCalls++

	name := strings.TrimPrefix(networkID, "net-")
	members, ok := f.NetworkMembers[name]
	if !ok {
		return fmt.Errorf("network %s not found", networkID)
	}
	if members[containerID] {
		// The daemon rejects duplicate attachments.
		return fmt.Errorf("endpoint with name %s already exists in network %s", containerID, name)
	}

	members[containerID] = true
	return nil
}

func (f *Fake) NetworkDisconnect(ctx context.Context, networkID, containerID string, force bool) error {
	f.DisconnectCalls++

	name := strings.TrimPrefix(networkID, "net-")
	members, ok := f.NetworkMembers[name]
	if !ok {
		return fmt.Errorf("network %s not found", networkID)
	}
	if !members[containerID] {
		return fmt.Errorf("container %s is not connected to network %s", containerID, name)
	}

	delete(members, containerID)
	return nil
}

func (f *Fake) NetworkRemove(ctx context.Context, networkID string) error {
	f.NetworkRemoveCalls++

	name := strings.TrimPrefix(networkID, "net-")
	members, ok := f.NetworkMembers[name]
	if !ok {
		return fmt.Errorf("network %s not found", networkID)
	}
	if len(members) > 0 {
		return fmt.Errorf("network %s has active endpoints", name)
	}

	delete(f.NetworkMembers, name)
	return nil
}

func (f *Fake) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	f.PulledImages = append(f.PulledImages, refStr)
	return io.NopCloser(strings.NewReader("")), nil
}
