//go:build linux
// +build linux

// mstpd is the spanning tree daemon: it watches the kernel for
// managed bridges, exchanges BPDUs on their ports, runs the 802.1Q
// state machines and pushes the resulting forwarding states back into
// the kernel. mstpctl talks to it over the control socket.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/config"
	"github.com/thelastdreamer/GoMSTP/pkg/ctl"
	"github.com/thelastdreamer/GoMSTP/pkg/driver"
	"github.com/thelastdreamer/GoMSTP/pkg/mstp"
	"github.com/thelastdreamer/GoMSTP/pkg/netmon"
	"github.com/thelastdreamer/GoMSTP/pkg/packet"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
	"github.com/thelastdreamer/GoMSTP/pkg/webui"
)

const version = "1.0.0"

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// coreCall is one closure to run on the core goroutine; done is
// closed after it ran.
type coreCall struct {
	fn   func()
	done chan struct{}
}

// flushDone is one FDB flush completion reported by the driver.
type flushDone struct {
	ifindex int
	mstid   protocol.MSTID
}

// daemon wires the adapters to the single-threaded core.
type daemon struct {
	cfg *config.Config
	log *logrus.Logger

	mgr    *mstp.Manager
	drv    *driver.LinuxDriver
	sock   *packet.Socket
	mon    *netmon.Monitor
	status *webui.Server

	bridgeDefaults mstp.BridgeConfig

	calls   chan coreCall
	flushes chan flushDone

	// lastTC tracks topology change counts for event publishing.
	lastTC map[string]uint32
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("gomstp mstpd v%s\n", version)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mstpd: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if os.Geteuid() != 0 {
		log.Fatal("mstpd needs root to manage bridges")
	}

	d, err := newDaemon(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	d.run()
}

func newDaemon(cfg *config.Config, log *logrus.Logger) (*daemon, error) {
	d := &daemon{
		cfg:     cfg,
		log:     log,
		calls:   make(chan coreCall, 16),
		flushes: make(chan flushDone, 64),
		lastTC:  make(map[string]uint32),
	}

	defaults, err := cfg.BridgeConfig()
	if err != nil {
		return nil, err
	}
	d.bridgeDefaults = defaults

	d.drv = driver.NewLinuxDriver(log)
	d.drv.OnFlushDone = func(ifindex int, mstid protocol.MSTID) {
		select {
		case d.flushes <- flushDone{ifindex: ifindex, mstid: mstid}:
		default:
			log.Warn("flush completion dropped, queue full")
		}
	}

	d.sock, err = packet.NewSocket(log)
	if err != nil {
		return nil, err
	}

	d.mon, err = netmon.NewMonitor(log)
	if err != nil {
		d.sock.Close()
		return nil, err
	}

	d.mgr = mstp.NewManager(d.drv, d, log)

	if cfg.StatusListen != "" {
		d.status = webui.NewServer(cfg.StatusListen, d.statusSource(), log)
		d.status.Start()
	}
	return d, nil
}

// SendBPDU implements mstp.Transmitter: frame the payload with the
// port's MAC and hand it to the packet socket.
func (d *daemon) SendBPDU(ifindex int, payload []byte) {
	iface, err := net.InterfaceByIndex(ifindex)
	if err != nil {
		d.log.WithError(err).Debug("tx on vanished port")
		return
	}
	d.sock.SendBPDU(ifindex, packet.BuildFrame(iface.HardwareAddr, payload))
}

// onCore runs fn on the core goroutine and waits for it.
func (d *daemon) onCore(fn func()) {
	call := coreCall{fn: fn, done: make(chan struct{})}
	d.calls <- call
	<-call.done
}

// statusSource adapts the core snapshots for the HTTP status API.
func (d *daemon) statusSource() webui.Source {
	return webui.Source{
		Bridges: func() []mstp.CISTBridgeStatus {
			var out []mstp.CISTBridgeStatus
			d.onCore(func() {
				for _, br := range d.mgr.Bridges() {
					out = append(out, br.CISTStatus())
				}
			})
			return out
		},
		Bridge: func(name string) (mstp.CISTBridgeStatus, error) {
			var st mstp.CISTBridgeStatus
			var err error
			d.onCore(func() {
				var br *mstp.Bridge
				if br, err = d.mgr.BridgeByName(name); err == nil {
					st = br.CISTStatus()
				}
			})
			return st, err
		},
		Ports: func(name string) ([]mstp.PortStatus, error) {
			var out []mstp.PortStatus
			var err error
			d.onCore(func() {
				var br *mstp.Bridge
				if br, err = d.mgr.BridgeByName(name); err == nil {
					out = br.PortStatuses()
				}
			})
			return out, err
		},
		Tree: func(name string, mstid protocol.MSTID) (mstp.TreeStatus, error) {
			var st mstp.TreeStatus
			var err error
			d.onCore(func() {
				var br *mstp.Bridge
				if br, err = d.mgr.BridgeByName(name); err == nil {
					st, err = br.TreeStatusOf(mstid)
				}
			})
			return st, err
		},
	}
}

// run is the core event loop: every channel delivers whole events,
// each applied to the core before the next is dequeued.
func (d *daemon) run() {
	handler := &ctl.Handler{Manager: d.mgr, Log: d.log}
	ctlServer, err := ctl.NewServer(d.cfg.ControlSocket, func(req ctl.Request) ctl.Response {
		var resp ctl.Response
		d.onCore(func() { resp = handler.Handle(req) })
		return resp
	}, d.log)
	if err != nil {
		d.log.WithError(err).Fatal("control socket failed")
	}
	defer ctlServer.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	d.log.WithField("version", version).Info("mstpd running")

	for {
		select {
		case <-sig:
			d.log.Info("shutting down")
			if d.status != nil {
				d.status.Stop()
			}
			d.mon.Close()
			d.sock.Close()
			return

		case call := <-d.calls:
			call.fn()
			close(call.done)
			d.publishTopologyChanges()

		case frame := <-d.sock.Frames():
			d.mgr.HandleBPDU(frame.Ifindex, frame.Payload)
			d.publishTopologyChanges()

		case ev := <-d.mon.Events():
			d.handleLinkEvent(ev)
			d.publishTopologyChanges()

		case f := <-d.flushes:
			d.mgr.HandleFlushDone(f.ifindex, f.mstid)

		case <-ticker.C:
			d.mgr.Tick()
			d.publishTopologyChanges()
		}
	}
}

// handleLinkEvent applies one kernel link update to the core.
func (d *daemon) handleLinkEvent(ev netmon.Event) {
	switch ev.Kind {
	case netmon.BridgeAdded:
		if !d.cfg.Manages(ev.Name) {
			return
		}
		br, err := d.mgr.AddBridge(ev.Name, ev.Ifindex, ev.MAC)
		if err != nil {
			d.log.WithError(err).WithField("bridge", ev.Name).Warn("bridge add failed")
			return
		}
		if err := br.SetConfig(d.bridgeDefaults); err != nil {
			d.log.WithError(err).Warn("bridge defaults rejected")
		}

	case netmon.BridgeRemoved:
		if err := d.mgr.DelBridge(ev.Ifindex); err == nil {
			d.drv.Forget(ev.Ifindex)
		}

	case netmon.PortAttached:
		if _, err := d.mgr.Bridge(ev.MasterIfindex); err != nil {
			return // unmanaged bridge
		}
		if err := d.mgr.AttachPort(ev.MasterIfindex, ev.Ifindex, ev.Name, ev.MAC); err != nil {
			d.log.WithError(err).WithField("port", ev.Name).Warn("port attach failed")
			return
		}
		d.mgr.HandlePortEvent(ev.Ifindex, ev.Up, ev.SpeedMbps, ev.Duplex)

	case netmon.PortDetached:
		if err := d.mgr.DetachPort(ev.Ifindex); err == nil {
			d.drv.Forget(ev.Ifindex)
		}

	case netmon.PortChanged:
		d.mgr.HandlePortEvent(ev.Ifindex, ev.Up, ev.SpeedMbps, ev.Duplex)
	}
}

// publishTopologyChanges pushes new topology change events onto the
// status stream.
func (d *daemon) publishTopologyChanges() {
	if d.status == nil {
		return
	}
	for _, br := range d.mgr.Bridges() {
		st := br.CISTStatus()
		if prev, ok := d.lastTC[st.Name]; ok && st.TopologyChangeCount > prev {
			d.status.Publish(webui.Event{
				Type:   webui.EventTopologyChange,
				Bridge: st.Name,
				MSTID:  protocol.CIST,
			})
		}
		d.lastTC[st.Name] = st.TopologyChangeCount
	}
}
