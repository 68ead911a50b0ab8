package ctl

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/mstp"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Handler executes decoded control requests against the bridge
// manager. It contains no locking: the daemon invokes it on the core
// event loop only.
type Handler struct {
	Manager *mstp.Manager
	Log     *logrus.Logger
}

// Handle dispatches one request and builds the response.
func (h *Handler) Handle(req Request) Response {
	switch req.Cmd {
	case CmdAddBridges:
		return h.addBridges(req.Data)
	case CmdDelBridges:
		return h.delBridges(req.Data)
	case CmdListBridges:
		return h.listBridges()
	case CmdGetCISTBridgeStatus:
		return h.getCISTBridgeStatus(req.Data)
	case CmdSetCISTBridgeConfig:
		return h.setCISTBridgeConfig(req.Data)
	case CmdGetCISTPortStatus:
		return h.getCISTPortStatus(req.Data)
	case CmdSetCISTPortConfig:
		return h.setCISTPortConfig(req.Data)
	case CmdCreateMSTI:
		return h.createMSTI(req.Data)
	case CmdDeleteMSTI:
		return h.deleteMSTI(req.Data)
	case CmdListMSTIs:
		return h.listMSTIs(req.Data)
	case CmdSetMSTIBridgeConfig:
		return h.setMSTIBridgeConfig(req.Data)
	case CmdGetMSTIBridgeStatus:
		return h.getMSTIBridgeStatus(req.Data)
	case CmdSetMSTIPortConfig:
		return h.setMSTIPortConfig(req.Data)
	case CmdGetMSTIPortStatus:
		return h.getMSTIPortStatus(req.Data)
	case CmdGetVIDs2FIDs:
		return h.getVIDs2FIDs(req.Data)
	case CmdSetVIDs2FIDs:
		return h.setVIDs2FIDs(req.Data)
	case CmdGetFIDs2MSTIDs:
		return h.getFIDs2MSTIDs(req.Data)
	case CmdSetFIDs2MSTIDs:
		return h.setFIDs2MSTIDs(req.Data)
	case CmdSetMSTConfID:
		return h.setMSTConfID(req.Data)
	case CmdGetMSTConfID:
		return h.getMSTConfID(req.Data)
	case CmdPortMcheck:
		return h.portMcheck(req.Data)
	case CmdSetDebugLevel:
		return h.setDebugLevel(req.Data)
	}
	return Response{Status: StatusBadArgument}
}

// statusOf maps core errors onto wire status codes.
func statusOf(err error) uint32 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, mstp.ErrNoSuchBridge):
		return StatusNoSuchBridge
	case errors.Is(err, mstp.ErrNoSuchPort):
		return StatusNoSuchPort
	case errors.Is(err, mstp.ErrNoSuchTree):
		return StatusNoSuchTree
	default:
		return StatusBadArgument
	}
}

func ok(result any) Response {
	if result == nil {
		return Response{Status: StatusOK}
	}
	blob, err := json.Marshal(result)
	if err != nil {
		return Response{Status: StatusInternal}
	}
	return Response{Status: StatusOK, Data: blob}
}

func fail(err error) Response {
	return Response{Status: statusOf(err)}
}

func decode[T any](data []byte) (T, bool) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}

func (h *Handler) bridgeOf(name string) (*mstp.Bridge, error) {
	return h.Manager.BridgeByName(name)
}

func (h *Handler) portOf(bridge, port string) (*mstp.Bridge, int, error) {
	br, err := h.Manager.BridgeByName(bridge)
	if err != nil {
		return nil, 0, err
	}
	ifindex, err := br.PortIfindexByName(port)
	if err != nil {
		return nil, 0, err
	}
	return br, ifindex, nil
}

func (h *Handler) addBridges(data []byte) Response {
	args, okArgs := decode[BridgesArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	for _, name := range args.Bridges {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return fail(mstp.ErrNoSuchBridge)
		}
		if _, err := h.Manager.AddBridge(name, iface.Index, iface.HardwareAddr); err != nil {
			return fail(err)
		}
	}
	return ok(nil)
}

func (h *Handler) delBridges(data []byte) Response {
	args, okArgs := decode[BridgesArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	for _, name := range args.Bridges {
		br, err := h.bridgeOf(name)
		if err != nil {
			return fail(err)
		}
		if err := h.Manager.DelBridge(br.Ifindex()); err != nil {
			return fail(err)
		}
	}
	return ok(nil)
}

func (h *Handler) listBridges() Response {
	var result BridgeListResult
	for _, br := range h.Manager.Bridges() {
		result.Bridges = append(result.Bridges, br.CISTStatus())
	}
	return ok(result)
}

func (h *Handler) getCISTBridgeStatus(data []byte) Response {
	args, okArgs := decode[BridgeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	return ok(br.CISTStatus())
}

func (h *Handler) setCISTBridgeConfig(data []byte) Response {
	args, okArgs := decode[SetBridgeConfigArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	cfg := br.Config()
	if args.MaxAge != nil {
		cfg.MaxAge = *args.MaxAge
	}
	if args.ForwardDelay != nil {
		cfg.ForwardDelay = *args.ForwardDelay
	}
	if args.HelloTime != nil {
		cfg.HelloTime = *args.HelloTime
	}
	if args.TxHoldCount != nil {
		cfg.TxHoldCount = *args.TxHoldCount
	}
	if args.MaxHops != nil {
		cfg.MaxHops = *args.MaxHops
	}
	if args.AgeingTime != nil {
		cfg.AgeingTime = *args.AgeingTime
	}
	if args.ForceProtocolVersion != nil {
		cfg.ForceProtocolVersion = protocol.ProtocolVersion(*args.ForceProtocolVersion)
	}
	return fail(br.SetConfig(cfg))
}

func (h *Handler) getCISTPortStatus(data []byte) Response {
	args, okArgs := decode[PortArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, ifindex, err := h.portOf(args.Bridge, args.Port)
	if err != nil {
		return fail(err)
	}
	st, err := br.PortStatusOf(ifindex)
	if err != nil {
		return fail(err)
	}
	return ok(st)
}

func (h *Handler) setCISTPortConfig(data []byte) Response {
	args, okArgs := decode[SetPortConfigArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, ifindex, err := h.portOf(args.Bridge, args.Port)
	if err != nil {
		return fail(err)
	}
	cfg, err := br.PortConfigOf(ifindex)
	if err != nil {
		return fail(err)
	}
	if args.AdminEdge != nil {
		cfg.AdminEdge = *args.AdminEdge
	}
	if args.AutoEdge != nil {
		cfg.AutoEdge = *args.AutoEdge
	}
	if args.RestrictedRole != nil {
		cfg.RestrictedRole = *args.RestrictedRole
	}
	if args.RestrictedTCN != nil {
		cfg.RestrictedTCN = *args.RestrictedTCN
	}
	if args.AdminExtPathCost != nil {
		cfg.AdminExtPathCost = *args.AdminExtPathCost
	}
	if args.AdminP2P != nil {
		switch *args.AdminP2P {
		case "yes":
			cfg.AdminP2P = protocol.P2PForceTrue
		case "no":
			cfg.AdminP2P = protocol.P2PForceFalse
		case "auto":
			cfg.AdminP2P = protocol.P2PAuto
		default:
			return Response{Status: StatusBadArgument}
		}
	}
	if args.BPDUGuard != nil {
		cfg.BPDUGuard = *args.BPDUGuard
	}
	if args.BPDUFilter != nil {
		cfg.BPDUFilter = *args.BPDUFilter
	}
	if args.NetworkPort != nil {
		cfg.NetworkPort = *args.NetworkPort
	}
	if args.DontTxmt != nil {
		cfg.DontTxmt = *args.DontTxmt
	}
	if err := br.SetPortConfig(ifindex, cfg); err != nil {
		return fail(err)
	}
	if args.ClearGuardError != nil && *args.ClearGuardError {
		if err := br.ClearBPDUGuardError(ifindex); err != nil {
			return fail(err)
		}
	}
	return ok(nil)
}

func (h *Handler) createMSTI(data []byte) Response {
	args, okArgs := decode[TreeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	return fail(br.CreateMSTI(args.MSTID))
}

func (h *Handler) deleteMSTI(data []byte) Response {
	args, okArgs := decode[TreeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	return fail(br.DeleteMSTI(args.MSTID))
}

func (h *Handler) listMSTIs(data []byte) Response {
	args, okArgs := decode[BridgeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	return ok(MSTIListResult{MSTIDs: br.MSTIDs()})
}

func (h *Handler) setMSTIBridgeConfig(data []byte) Response {
	args, okArgs := decode[SetTreeConfigArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	return fail(br.SetTreePriority(args.MSTID, args.Priority))
}

func (h *Handler) getMSTIBridgeStatus(data []byte) Response {
	args, okArgs := decode[TreeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	st, err := br.TreeStatusOf(args.MSTID)
	if err != nil {
		return fail(err)
	}
	return ok(st)
}

func (h *Handler) setMSTIPortConfig(data []byte) Response {
	args, okArgs := decode[SetTreePortConfigArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, ifindex, err := h.portOf(args.Bridge, args.Port)
	if err != nil {
		return fail(err)
	}
	cfg := mstp.TreePortConfig{Priority: mstp.DefaultPortPriority}
	if args.Priority != nil {
		cfg.Priority = *args.Priority
	}
	if args.IntPathCost != nil {
		cfg.AdminIntPathCost = *args.IntPathCost
	}
	return fail(br.SetTreePortConfig(ifindex, args.MSTID, cfg))
}

func (h *Handler) getMSTIPortStatus(data []byte) Response {
	args, okArgs := decode[TreePortArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, ifindex, err := h.portOf(args.Bridge, args.Port)
	if err != nil {
		return fail(err)
	}
	st, err := br.TreePortStatusOf(ifindex, args.MSTID)
	if err != nil {
		return fail(err)
	}
	return ok(st)
}

func (h *Handler) getVIDs2FIDs(data []byte) Response {
	args, okArgs := decode[BridgeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	table := br.VID2FID()
	return ok(TableArgs{Bridge: args.Bridge, Table: table[:]})
}

func (h *Handler) setVIDs2FIDs(data []byte) Response {
	args, okArgs := decode[TableArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	var table [protocol.MaxVID + 2]uint16
	if len(args.Table) != len(table) {
		return Response{Status: StatusBadArgument}
	}
	copy(table[:], args.Table)
	return fail(br.SetVID2FID(table))
}

func (h *Handler) getFIDs2MSTIDs(data []byte) Response {
	args, okArgs := decode[BridgeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	table := br.FID2MSTID()
	return ok(TableArgs{Bridge: args.Bridge, Table: table[:]})
}

func (h *Handler) setFIDs2MSTIDs(data []byte) Response {
	args, okArgs := decode[TableArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	var table [protocol.MaxFID + 1]uint16
	if len(args.Table) != len(table) {
		return Response{Status: StatusBadArgument}
	}
	copy(table[:], args.Table)
	return fail(br.SetFID2MSTID(table))
}

func (h *Handler) setMSTConfID(data []byte) Response {
	args, okArgs := decode[SetMSTConfIDArgs](data)
	if !okArgs || len(args.Name) > 32 {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	br.SetMSTConfigID(args.Name, args.Revision)
	return ok(nil)
}

func (h *Handler) getMSTConfID(data []byte) Response {
	args, okArgs := decode[BridgeArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, err := h.bridgeOf(args.Bridge)
	if err != nil {
		return fail(err)
	}
	id := br.MSTConfigID()
	return ok(MSTConfIDResult{
		Name:     id.NameString(),
		Revision: id.Revision,
		Digest:   hex.EncodeToString(id.Digest[:]),
	})
}

func (h *Handler) portMcheck(data []byte) Response {
	args, okArgs := decode[PortArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	br, ifindex, err := h.portOf(args.Bridge, args.Port)
	if err != nil {
		return fail(err)
	}
	return fail(br.PortMcheck(ifindex))
}

func (h *Handler) setDebugLevel(data []byte) Response {
	args, okArgs := decode[DebugLevelArgs](data)
	if !okArgs {
		return Response{Status: StatusBadArgument}
	}
	level, err := logrus.ParseLevel(args.Level)
	if err != nil {
		return Response{Status: StatusBadArgument}
	}
	h.Log.SetLevel(level)
	return ok(nil)
}
