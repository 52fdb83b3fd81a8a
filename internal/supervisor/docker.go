package supervisor

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const dockerSocket = "/var/run/docker.sock"

// dockerClient talks to the Docker Engine API over its Unix control
// socket. A single http.Client with a custom dialer stands in for the
// curl-over---unix-socket invocations in the original monitor, with the
// same soft/hard timeout split (spec §5): 5s to establish and read
// headers, 10s as the absolute ceiling on the whole request.
type dockerClient struct {
	http *http.Client
}

func newDockerClient() *dockerClient {
	return &dockerClient{
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 5 * time.Second,
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					d := net.Dialer{Timeout: 5 * time.Second}
					return d.DialContext(ctx, "unix", dockerSocket)
				},
			},
		},
	}
}

// container is the subset of Docker's /containers/json response this
// package reads.
type container struct {
	ID      string            `json:"Id"`
	Names   []string          `json:"Names"`
	Image   string            `json:"Image"`
	State   string            `json:"State"`
	Status  string            `json:"Status"`
	Created int64             `json:"Created"`
	Labels  map[string]string `json:"Labels"`
}

func (c container) shortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

func (c container) name() string {
	if len(c.Names) == 0 {
		return ""
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

// containerStats is the subset of /containers/{id}/stats this package
// reads to derive cpu_percent and memory_percent.
type containerStats struct {
	CPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage uint64 `json:"system_cpu_usage"`
		OnlineCPUs     uint64 `json:"online_cpus"`
	} `json:"cpu_stats"`
	PreCPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage uint64 `json:"system_cpu_usage"`
	} `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
}

// cpuPercent computes CPU percentage the same way the original monitor
// does: the delta of cumulative usage samples over the delta of system
// usage samples, times the number of online processors, times 100.
func (s containerStats) cpuPercent() float64 {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(s.CPUStats.SystemCPUUsage) - float64(s.PreCPUStats.SystemCPUUsage)
	numCPUs := s.CPUStats.OnlineCPUs
	if numCPUs == 0 {
		numCPUs = 1
	}
	if systemDelta <= 0 {
		return 0
	}
	return (cpuDelta / systemDelta) * float64(numCPUs) * 100.0
}

func (s containerStats) memPercent() float64 {
	if s.MemoryStats.Limit == 0 {
		return 0
	}
	return (float64(s.MemoryStats.Usage) / float64(s.MemoryStats.Limit)) * 100.0
}

// get performs a GET against the Docker API and decodes the JSON body
// into v. Any failure (socket absent, timeout, non-2xx, bad JSON) is
// reported uniformly so callers can fall back to an "unavailable"
// response rather than propagate a raw transport error.
func (d *dockerClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://docker"+path, nil)
	if err != nil {
		return err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("docker API %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (d *dockerClient) listContainers(ctx context.Context) ([]container, error) {
	var out []container
	if err := d.get(ctx, "/containers/json?all=true", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *dockerClient) stats(ctx context.Context, id string) (containerStats, error) {
	var out containerStats
	err := d.get(ctx, fmt.Sprintf("/containers/%s/stats?stream=false", id), &out)
	return out, err
}

// logs fetches the tail of a container's combined stdout/stderr and
// decodes Docker's multiplexed log framing: repeated frames of an
// 8-byte header (1 stream-kind byte, 3 zero bytes, a big-endian 4-byte
// payload length) followed by that many bytes of payload. Frames are
// concatenated, newest last, matching docker_logs in the original
// monitor.
func (d *dockerClient) logs(ctx context.Context, id string, tail int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://docker/containers/%s/logs?stdout=true&stderr=true&tail=%d", id, tail), nil)
	if err != nil {
		return "", err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("docker API logs: status %d", resp.StatusCode)
	}

	var raw []byte
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			raw = append(raw, buf[:n]...)
		}
		if rerr != nil {
			break
		}
	}

	return decodeLogFrames(raw), nil
}

func decodeLogFrames(raw []byte) string {
	var lines []string
	i := 0
	for i < len(raw) {
		if i+8 > len(raw) {
			lines = append(lines, string(raw[i:]))
			break
		}
		size := binary.BigEndian.Uint32(raw[i+4 : i+8])
		start := i + 8
		end := start + int(size)
		if end > len(raw) {
			end = len(raw)
		}
		lines = append(lines, strings.TrimRight(string(raw[start:end]), "\n"))
		i = end
	}
	return strings.Join(lines, "\n")
}
