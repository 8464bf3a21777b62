// Package monitoring serves the state of running processes over HTTP.
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
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/pgtrace/monitoring/web"
	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

// Monitor turns a set of processes into a web server so that their address
// spaces can be inspected from a browser.
//
// Requests that read or modify a process hold the monitor lock. Callers that
// keep driving a registered process should do so only after the workload has
// finished, or through WithLock.
type Monitor struct {
	lock       sync.Mutex
	processes  map[proc.PID]*proc.Process
	components map[string]any
	portNumber int
	server     *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		processes:  make(map[proc.PID]*proc.Process),
		components: make(map[string]any),
	}
}

// WithPortNumber sets the port number of the monitor.
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

// RegisterProcess makes a process visible to the monitor.
func (m *Monitor) RegisterProcess(p *proc.Process) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.processes[p.PID()] = p
}

// RegisterComponent makes an arbitrary component, such as the MMU or the
// pager, inspectable by name.
func (m *Monitor) RegisterComponent(name string, c any) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.components[name] = c
}

// WithLock runs f while no request is served.
func (m *Monitor) WithLock(f func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	f()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
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

// Router returns the handler that serves the API and the web pages.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/process/{pid}", m.processDetails)
	r.HandleFunc("/api/process/{pid}/mappings", m.listMappings)
	r.HandleFunc("/api/process/{pid}/pgaccess", m.pgAccess)
	r.HandleFunc("/api/components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.componentDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the port that the
// server listens on.
func (m *Monitor) StartServer() (int, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return 0, err
	}

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr,
		"Monitoring processes with http://localhost:%d\n", port)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic(err)
		}
	}()

	return port, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type processRsp struct {
	PID         proc.PID `json:"pid"`
	Name        string   `json:"name"`
	Size        uint64   `json:"size"`
	StackTop    uint64   `json:"stack_top"`
	NumMappings int      `json:"num_mappings"`
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rsp := []processRsp{}
	for _, p := range m.processes {
		if p.Released() {
			continue
		}

		rsp = append(rsp, processRsp{
			PID:         p.PID(),
			Name:        p.Name(),
			Size:        p.Size(),
			StackTop:    p.StackTop(),
			NumMappings: len(vm.Mappings(p.Memory(), p.Root())),
		})
	}

	sort.Slice(rsp, func(i, j int) bool { return rsp[i].PID < rsp[j].PID })

	writeJSON(w, rsp)
}

func (m *Monitor) processDetails(w http.ResponseWriter, r *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	p := m.findProcessOr404(w, r)
	if p == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(p)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type mappingRsp struct {
	Index int    `json:"index"`
	VAddr uint64 `json:"vaddr"`
	PAddr uint64 `json:"paddr"`
	Flags string `json:"flags"`
}

func (m *Monitor) listMappings(w http.ResponseWriter, r *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	p := m.findProcessOr404(w, r)
	if p == nil {
		return
	}

	rsp := []mappingRsp{}
	for _, mapping := range vm.Mappings(p.Memory(), p.Root()) {
		rsp = append(rsp, mappingRsp{
			Index: mapping.Index,
			VAddr: mapping.VAddr,
			PAddr: mapping.PAddr,
			Flags: mapping.Entry.Flags().String(),
		})
	}

	writeJSON(w, rsp)
}

type pageAccessRsp struct {
	Page     int    `json:"page"`
	VAddr    uint64 `json:"vaddr"`
	Dirty    bool   `json:"dirty"`
	Accessed bool   `json:"accessed"`
}

type accessReportRsp struct {
	Start  uint64          `json:"start"`
	Bitmap string          `json:"bitmap"`
	Pages  []pageAccessRsp `json:"pages"`
}

// pgAccess runs an access query on behalf of the process. Like the system
// call, it clears the accessed bits of the queried pages.
func (m *Monitor) pgAccess(w http.ResponseWriter, r *http.Request) {
	start, numPages, err := parseAccessParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	p := m.findProcessOr404(w, r)
	if p == nil {
		return
	}

	bitmap, err := p.AccessReport(start, numPages)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	rsp := accessReportRsp{Start: start, Bitmap: bitmap.String()}
	for i := 0; i < vm.ClampAccessPages(numPages); i++ {
		rsp.Pages = append(rsp.Pages, pageAccessRsp{
			Page:     i,
			VAddr:    start + uint64(i)*vm.PageSize,
			Dirty:    bitmap.Dirty(i),
			Accessed: bitmap.Accessed(i),
		})
	}

	writeJSON(w, rsp)
}

func parseAccessParams(r *http.Request) (start uint64, numPages int, err error) {
	query := r.URL.Query()

	start, err = strconv.ParseUint(query.Get("va"), 0, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid va: %w", err)
	}

	numPages = vm.MaxAccessPages
	if n := query.Get("n"); n != "" {
		numPages, err = strconv.Atoi(n)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid n: %w", err)
		}
	}

	return start, numPages, nil
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}

	sort.Strings(names)

	writeJSON(w, names)
}

func (m *Monitor) componentDetails(w http.ResponseWriter, r *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	component := m.findComponentOr404(w, mux.Vars(r)["name"])
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

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findProcessOr404(
	w http.ResponseWriter,
	r *http.Request,
) *proc.Process {
	pid, err := strconv.ParseUint(mux.Vars(r)["pid"], 10, 32)
	if err == nil {
		p, found := m.processes[proc.PID(pid)]
		if found && !p.Released() {
			return p
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err = w.Write([]byte("Process not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) findComponentOr404(w http.ResponseWriter, name string) any {
	component, found := m.components[name]
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Component not found"))
		dieOnErr(err)

		return nil
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]*ProgressBar, len(m.progressBars))
	copy(bars, m.progressBars)

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	self, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := self.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := self.MemoryInfo()
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
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
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
