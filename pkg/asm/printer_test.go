package asm

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		inst Instruction
		want string
	}{
		{Add("a1", "a2", "a3"), "add a1, a2, a3"},
		{Addi("v1", Zero, -3), "addi v1, x0, -3"},
		{Slti("v2", "v1", 2), "slti v2, v1, 2"},
		{Xori("v3", "v2", 1), "xori v3, v2, 1"},
		{Lw(Zero, 4, "a1"), "lw a1, 4(x0)"},
		{Sw(SP, 0, "a2"), "sw a2, 0(sp)"},
		{Jal{Rd: RA, Target: 7}, "jal ra, 7"},
		{Jalr{Rd: RA, Base: "a1"}, "jalr ra, a1"},
		{Beq{Rs1: "a1", Rs2: Zero, Target: 9}, "beq a1, x0, 9"},
	}
	for _, tt := range tests {
		if got := Format(tt.inst); got != tt.want {
			t.Errorf("Format(%#v) = %q, want %q", tt.inst, got, tt.want)
		}
	}
}

func TestPrintProgram(t *testing.T) {
	p := NewProgram(10, nil,
		Addi("v1", Zero, 3),
		Addi("v2", Zero, 4),
		Add("v3", "v1", "v2"),
	)
	var sb strings.Builder
	NewPrinter(&sb).PrintProgram(p)
	out := sb.String()
	for _, want := range []string{"0: addi v1, x0, 3", "2: add v3, v1, v2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
