package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

type sampleComponent struct {
	sim.NamedBase

	Counter int
	Label   string
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		region  *vm.Region
		handler http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	post := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()
		m.profileDuration = 10 * time.Millisecond

		region, _ = vm.NewRegion("vmem", vm.DefaultGeometry())
		region.Adm.FaultCount = 4
		region.Adm.AccessCount = 16
		region.Table.MarkPresent(7, 0)

		m.RegisterRegion(region)
		m.RegisterComponent(&sampleComponent{
			NamedBase: sim.MakeNamedBase("Comp"),
			Counter:   3,
			Label:     "abc",
		})

		handler = m.Handler()
	})

	It("should replace privileged ports", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(BeZero())
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should list components", func() {
		rec := get("/api/list_components")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["Comp"]`))
	})

	It("should serialize a component", func() {
		rec := get("/api/component/Comp")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Counter"))
	})

	It("should report unknown components", func() {
		Expect(get("/api/component/Nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should list regions", func() {
		Expect(get("/api/regions").Body.String()).To(MatchJSON(`["vmem"]`))
	})

	It("should report the region state", func() {
		rec := get("/api/region/vmem")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var snapshot vm.RegionSnapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &snapshot)).To(Succeed())
		Expect(snapshot.Key).To(Equal("vmem"))
		Expect(snapshot.PageTable.FramePage[0]).To(Equal(7))
		Expect(snapshot.PageTable.Entries[7].Present).To(BeTrue())
	})

	It("should report the statistics", func() {
		rec := get("/api/region/vmem/stats")

		Expect(rec.Body.String()).To(MatchJSON(
			`{"faults":4,"accesses":16,"evictions":0,"fault_rate":0.25}`))
	})

	It("should check the invariants", func() {
		Expect(get("/api/region/vmem/invariants").Body.String()).
			To(MatchJSON(`{"ok":true}`))
	})

	It("should find regions whose key is a path", func() {
		other, _ := vm.NewRegion("./vmem", vm.DefaultGeometry())
		m.RegisterRegion(other)

		rec := get("/api/region/" + url.PathEscape("./vmem") + "/stats")

		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should report unknown regions", func() {
		Expect(get("/api/region/other/stats").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should post a dump request", func() {
		Expect(post("/api/region/vmem/dump").Code).
			To(Equal(http.StatusAccepted))

		var req vm.Request
		Eventually(region.Channel().Requests()).Should(Receive(&req))
		Expect(req.Kind).To(Equal(vm.DumpPageTableReq))
	})

	It("should only accept posted commands", func() {
		Expect(get("/api/region/vmem/terminate").Code).
			To(Equal(http.StatusMethodNotAllowed))
	})

	It("should post a terminate request", func() {
		Expect(post("/api/region/vmem/terminate").Code).
			To(Equal(http.StatusAccepted))

		var req vm.Request
		Eventually(region.Channel().Requests()).Should(Receive(&req))
		Expect(req.Kind).To(Equal(vm.TerminateReq))
	})

	It("should report a terminated manager", func() {
		region.Channel().Terminate()

		Expect(post("/api/region/vmem/dump").Code).To(Equal(http.StatusGone))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("Sort", 10)
		bar.IncrementFinished(4)

		rec := get("/api/progress")
		Expect(rec.Body.String()).To(ContainSubstring(`"finished":4`))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should report the resources of the process", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a profile", func() {
		Expect(get("/api/profile").Code).To(Equal(http.StatusOK))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should serve over TCP", func() {
		Expect(m.OpenBrowser()).To(HaveOccurred())
		Expect(m.StartServer()).To(Succeed())
		defer m.Shutdown(context.Background())

		rsp, err := http.Get(m.URL() + "/api/regions")

		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
