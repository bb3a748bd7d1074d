package elfwriter

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProducesValidElfHeader(t *testing.T) {
	obj := &Object{
		Machine:     MachineARM,
		Text:        []byte{0xDE, 0xAD, 0xBE, 0xEF},
		Data:        []byte{0x01, 0x02},
		EntryOffset: 0,
	}
	out := Write(obj)

	require.GreaterOrEqual(t, len(out), headerSize)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, out[:4])
	assert.Equal(t, byte(1), out[4], "ELFCLASS32")
	assert.Equal(t, byte(1), out[5], "ELFDATA2LSB")

	eType := binary.LittleEndian.Uint16(out[16:18])
	assert.EqualValues(t, 2, eType, "ET_EXEC")

	eMachine := binary.LittleEndian.Uint16(out[18:20])
	assert.EqualValues(t, MachineARM, eMachine)

	eEntry := binary.LittleEndian.Uint32(out[24:28])
	assert.Equal(t, uint32(loadAddr+headerSize), eEntry)
}

func TestWriteEntryOffsetShiftsEntryPoint(t *testing.T) {
	obj := &Object{Machine: MachineRISCV, Text: make([]byte, 32), EntryOffset: 12}
	out := Write(obj)
	eEntry := binary.LittleEndian.Uint32(out[24:28])
	assert.Equal(t, uint32(loadAddr+headerSize+12), eEntry)

	eMachine := binary.LittleEndian.Uint16(out[18:20])
	assert.EqualValues(t, MachineRISCV, eMachine)
}

func TestWriteAppendsTextThenData(t *testing.T) {
	text := []byte{1, 2, 3, 4}
	data := []byte{5, 6}
	obj := &Object{Machine: MachineARM, Text: text, Data: data}
	out := Write(obj)

	body := out[headerSize:]
	assert.Equal(t, append(append([]byte{}, text...), data...), body)
}
