// Package utils holds capture helpers shared by the capture plugins.
package utils

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// CompileBpf compiles a tcpdump-style filter expression for Ethernet frames
// into raw classic BPF instructions.
func CompileBpf(filter string, snapLen int) ([]bpf.RawInstruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter %q: %w", filter, err)
	}

	// pcap.BPFInstruction and bpf.RawInstruction share a layout: Code->Op, Jt, Jf, K
	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return rawBpf, nil
}

// BpfFilter evaluates a compiled filter in user space.
type BpfFilter struct {
	expr string
	vm   *bpf.VM
}

// NewBpfFilter compiles filter and loads it into an x/net/bpf virtual machine.
func NewBpfFilter(filter string, snapLen int) (*BpfFilter, error) {
	raw, err := CompileBpf(filter, snapLen)
	if err != nil {
		return nil, err
	}

	insns, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("BPF filter %q uses instructions the VM cannot run", filter)
	}

	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, fmt.Errorf("failed to load BPF filter %q: %w", filter, err)
	}
	return &BpfFilter{expr: filter, vm: vm}, nil
}

// Match reports whether frame passes the filter.
func (f *BpfFilter) Match(frame []byte) bool {
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}

// String returns the filter expression.
func (f *BpfFilter) String() string {
	return f.expr
}
