// Command demo drives one scheduling round end to end, outside of any RPC
// layer: it loads a small fixed cluster and task list from a YAML file,
// constructs a scheduler.Scheduler, calls ScheduleOnce once, and prints the
// resulting SchedulingResult. Grounded on hostmgr/main/main.go's flag
// definitions, JSON logrus formatter, and automaxprocs import.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v2"

	_ "go.uber.org/automaxprocs"

	"github.com/pborman/uuid"

	"github.com/uber/fenzo-go/pkg/config"
	"github.com/uber/fenzo-go/pkg/constraint"
	"github.com/uber/fenzo-go/pkg/lease"
	"github.com/uber/fenzo-go/pkg/metrics"
	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/scheduler"
	"github.com/uber/fenzo-go/pkg/task"
)

var (
	app = kingpin.New("fenzo-demo", "One-shot task-to-host assignment demo")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	clusterFile = app.Flag(
		"cluster",
		"YAML file describing the fixed cluster and pending task list").
		Short('c').
		Required().
		ExistingFile()
)

// demoHost is one cluster host and its single starting offer.
type demoHost struct {
	Hostname    string  `yaml:"hostname"`
	CPU         float64 `yaml:"cpu"`
	MemoryMB    float64 `yaml:"memoryMB"`
	NetworkMbps float64 `yaml:"networkMbps"`
	DiskMB      float64 `yaml:"diskMB"`
}

// demoTask is one pending task request.
type demoTask struct {
	ID        string  `yaml:"id"`
	Group     string  `yaml:"group"`
	CPU       float64 `yaml:"cpu"`
	MemoryMB  float64 `yaml:"memoryMB"`
}

type demoCluster struct {
	Hosts []demoHost `yaml:"hosts"`
	Tasks []demoTask `yaml:"tasks"`
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(&log.JSONFormatter{})
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	raw, err := ioutil.ReadFile(*clusterFile)
	if err != nil {
		log.WithError(err).Fatal("cannot read cluster file")
	}
	var cluster demoCluster
	if err := yaml.Unmarshal(raw, &cluster); err != nil {
		log.WithError(err).Fatal("cannot parse cluster file")
	}

	cfg, err := config.New(config.Config{
		LeaseRejectCallback: func(r lease.Rejection) {
			log.WithFields(log.Fields{
				"offer":  r.Offer.ID,
				"host":   r.Offer.Hostname,
				"reason": r.Reason,
			}).Info("offer rejected")
		},
	})
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	registry := constraint.NewRegistry()
	sched := scheduler.New(cfg, registry, metrics.NewNoop())

	offers := make([]lease.Offer, 0, len(cluster.Hosts))
	for _, h := range cluster.Hosts {
		offers = append(offers, lease.Offer{
			ID:       uuid.New(),
			Hostname: h.Hostname,
			VMID:     h.Hostname,
			Resources: scalar.Resources{
				CPU:         h.CPU,
				MemoryMB:    h.MemoryMB,
				NetworkMbps: h.NetworkMbps,
				DiskMB:      h.DiskMB,
			},
		})
	}

	requests := make([]task.Request, 0, len(cluster.Tasks))
	for _, t := range cluster.Tasks {
		requests = append(requests, task.Request{
			ID:        t.ID,
			GroupName: t.Group,
			Resources: scalar.Resources{CPU: t.CPU, MemoryMB: t.MemoryMB},
		})
	}

	result, err := sched.ScheduleOnce(requests, offers)
	if err != nil {
		log.WithError(err).Fatal("scheduleOnce failed")
	}

	fmt.Printf("round took %dms, %d trials, %d/%d hosts idle\n",
		result.RuntimeMillis, result.NumAllocationTrials, result.IdleVMs, result.TotalVMs)
	for hostname, vm := range result.PerHostAssignments {
		fmt.Printf("host %s: %d task(s) bound\n", hostname, len(vm.Tasks))
		for _, bound := range vm.Tasks {
			fmt.Printf("  - %s\n", bound.ID)
		}
	}
	for taskID, failures := range result.PerTaskFailures {
		fmt.Printf("task %s: unplaced (%d failure(s))\n", taskID, len(failures))
		for _, f := range failures {
			fmt.Printf("  - %s: %s\n", f.Kind, f.Reason)
		}
	}
}
