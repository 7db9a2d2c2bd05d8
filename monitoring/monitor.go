// Package monitoring turns a running simulation into a web server that
// reports the state of the simulated memory and of the host process.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/monitoring/web"
	"github.com/sarchlab/vmsim/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulated memory.
type Monitor struct {
	lock       sync.Mutex
	portNumber int
	components []sim.Named
	regions    map[string]*vm.Region

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	profileDuration time.Duration
	server          *http.Server
	listener        net.Listener
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		regions:         make(map[string]*vm.Region),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Privileged ports are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterComponent registers a component to be inspected.
func (m *Monitor) RegisterComponent(c sim.Named) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.components = append(m.components, c)
}

// RegisterRegion registers a region to be reported and controlled.
func (m *Monitor) RegisterRegion(r *vm.Region) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.regions[r.Key()] = r
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:        sim.GetIDGenerator().Generate(),
		name:      name,
		startTime: time.Now(),
		total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router that serves the monitoring API and the web
// page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter().UseEncodedPath()

	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/regions", m.listRegions)
	r.HandleFunc("/api/region/{key}", m.regionDetails)
	r.HandleFunc("/api/region/{key}/stats", m.regionStats)
	r.HandleFunc("/api/region/{key}/invariants", m.regionInvariants)
	r.HandleFunc("/api/region/{key}/dump", m.dumpRegion).
		Methods(http.MethodPost)
	r.HandleFunc("/api/region/{key}/terminate", m.terminateRegion).
		Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server in the background.
func (m *Monitor) StartServer() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return fmt.Errorf("monitoring: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(os.Stderr,
		"Monitoring simulation with %s\n", m.URL())

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic(err)
		}
	}()

	return nil
}

// URL returns the address of the web page. It is empty before the server
// starts.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenBrowser opens the web page in the default browser.
func (m *Monitor) OpenBrowser() error {
	if m.listener == nil {
		return errors.New("monitoring: server is not started")
	}

	return browser.OpenURL(m.URL())
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}
	m.lock.Unlock()

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, pathVar(r, "name"))
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(pathVar(r, "json")), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listRegions(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	keys := make([]string, 0, len(m.regions))
	for key := range m.regions {
		keys = append(keys, key)
	}
	m.lock.Unlock()

	sort.Strings(keys)

	writeJSON(w, keys)
}

func (m *Monitor) regionDetails(w http.ResponseWriter, r *http.Request) {
	region := m.findRegionOr404(w, pathVar(r, "key"))
	if region == nil {
		return
	}

	writeJSON(w, region.Snapshot())
}

func (m *Monitor) regionStats(w http.ResponseWriter, r *http.Request) {
	region := m.findRegionOr404(w, pathVar(r, "key"))
	if region == nil {
		return
	}

	writeJSON(w, region.Snapshot().Adm.Stats())
}

type invariantsRsp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (m *Monitor) regionInvariants(w http.ResponseWriter, r *http.Request) {
	region := m.findRegionOr404(w, pathVar(r, "key"))
	if region == nil {
		return
	}

	region.Lock()
	err := region.Table.CheckInvariants()
	region.Unlock()

	rsp := invariantsRsp{OK: err == nil}
	if err != nil {
		rsp.Error = err.Error()
	}

	writeJSON(w, rsp)
}

func (m *Monitor) dumpRegion(w http.ResponseWriter, r *http.Request) {
	m.postToRegion(w, r, (*vm.FaultChannel).PostDump)
}

func (m *Monitor) terminateRegion(w http.ResponseWriter, r *http.Request) {
	m.postToRegion(w, r, (*vm.FaultChannel).PostTerminate)
}

func (m *Monitor) postToRegion(
	w http.ResponseWriter,
	r *http.Request,
	post func(*vm.FaultChannel) error,
) {
	region := m.findRegionOr404(w, pathVar(r, "key"))
	if region == nil {
		return
	}

	err := post(region.Channel())
	if errors.Is(err, vm.ErrTerminated) {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}

	dieOnErr(err)
	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Named {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) findRegionOr404(
	w http.ResponseWriter,
	key string,
) *vm.Region {
	m.lock.Lock()
	defer m.lock.Unlock()

	region, found := m.regions[key]
	if !found {
		http.Error(w, "Region not found", http.StatusNotFound)
		return nil
	}

	return region
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	records := make([]progressRecord, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		records = append(records, b.record())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, records)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

// pathVar returns the unescaped route variable. Region keys are paths
// themselves, so the router matches on the encoded path.
func pathVar(r *http.Request, name string) string {
	v := mux.Vars(r)[name]

	unescaped, err := url.PathUnescape(v)
	if err != nil {
		return v
	}

	return unescaped
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
