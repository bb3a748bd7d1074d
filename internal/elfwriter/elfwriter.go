// Package elfwriter implements spec.md §6's ELF output: a minimal static,
// non-relocatable, non-PIE 32-bit executable carrying a single loadable
// text+data segment, enough to run under Linux's ELF loader on either
// target architecture codegen supports.
package elfwriter

import (
	"bytes"
	"encoding/binary"
)

// Machine identifies the target instruction set in the ELF header's
// e_machine field.
type Machine uint16

const (
	MachineARM    Machine = 40 // EM_ARM
	MachineRISCV  Machine = 243 // EM_RISCV
)

// loadAddr is the fixed virtual address this compiler links every static
// executable at — simple and sufficient for the freestanding, non-PIE
// binaries spec.md §6 describes; real bare-metal/Linux static binaries
// commonly start here too.
const loadAddr = 0x10000

// headerSize accounts for the ELF header plus one program header, used to
// compute the file offset where .text begins.
const headerSize = 52 + 32 // Elf32_Ehdr + one Elf32_Phdr

// Object is the minimal layout internal/compiler assembles before writing:
// one text section (code) and one data section (string literals/globals,
// spec.md §3's DATA_SEGMENT), plus the entry point's byte offset within
// Text.
type Object struct {
	Machine    Machine
	Text       []byte
	Data       []byte
	EntryOffset int // byte offset of main's entry point within Text
}

// Write serializes obj as a static ELF32 executable: ELF header, one
// PT_LOAD program header covering text+data, then the raw bytes.
func Write(obj *Object) []byte {
	var buf bytes.Buffer

	textAddr := uint32(loadAddr + headerSize)
	entry := textAddr + uint32(obj.EntryOffset)
	fileSize := uint32(headerSize) + uint32(len(obj.Text)) + uint32(len(obj.Data))

	// Elf32_Ehdr
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 1 /* ELFCLASS32 */, 1 /* ELFDATA2LSB */, 1 /* EV_CURRENT */, 0 /* ELFOSABI_SYSV */})
	buf.Write(make([]byte, 8)) // e_ident padding
	writeLE16(&buf, 2)                  // e_type: ET_EXEC
	writeLE16(&buf, uint16(obj.Machine))
	writeLE32(&buf, 1) // e_version
	writeLE32(&buf, entry)
	writeLE32(&buf, 52) // e_phoff: program header immediately follows the ELF header
	writeLE32(&buf, 0)  // e_shoff: no section headers
	writeLE32(&buf, 0)  // e_flags
	writeLE16(&buf, 52) // e_ehsize
	writeLE16(&buf, 32) // e_phentsize
	writeLE16(&buf, 1)  // e_phnum
	writeLE16(&buf, 0)  // e_shentsize
	writeLE16(&buf, 0)  // e_shnum
	writeLE16(&buf, 0)  // e_shstrndx

	// Elf32_Phdr: one PT_LOAD covering the whole file (R+X, since .data
	// holds only read-only string/initializer bytes in this ABI-minimal
	// writer — spec.md §6 doesn't call for separate RW segments).
	writeLE32(&buf, 1) // p_type: PT_LOAD
	writeLE32(&buf, 0) // p_offset
	writeLE32(&buf, loadAddr)
	writeLE32(&buf, loadAddr)
	writeLE32(&buf, fileSize)
	writeLE32(&buf, fileSize)
	writeLE32(&buf, 5) // p_flags: PF_R | PF_X
	writeLE32(&buf, 0x1000) // p_align

	buf.Write(obj.Text)
	buf.Write(obj.Data)

	return buf.Bytes()
}

func writeLE16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeLE32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
