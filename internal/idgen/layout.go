package idgen

import "math"

// Layout is the bit allocation of an id, most significant bits first:
//
//	[ 0 | timestamp delta | sequence | server id | worker id ]
//
// Shifts and masks are computed once by NewLayout.
type Layout struct {
	Epoch        int64
	SequenceBits uint
	ServerIDBits uint
	WorkerIDBits uint

	sequenceMask   uint64
	serverIDMask   uint64
	workerIDMask   uint64
	timestampMask  uint64
	serverIDShift  uint
	sequenceShift  uint
	timestampShift uint
}

// ID is a minted id together with the fields it encodes.
type ID struct {
	Value     uint64
	Timestamp int64 // absolute, ms since the Unix epoch
	Sequence  uint64
	ServerID  uint64
	WorkerID  uint64
}

func NewLayout(epoch int64, sequenceBits, serverIDBits, workerIDBits uint) Layout {
	l := Layout{
		Epoch:        epoch,
		SequenceBits: sequenceBits,
		ServerIDBits: serverIDBits,
		WorkerIDBits: workerIDBits,
	}
	l.sequenceMask = mask(sequenceBits)
	l.serverIDMask = mask(serverIDBits)
	l.workerIDMask = mask(workerIDBits)
	l.serverIDShift = workerIDBits
	l.sequenceShift = serverIDBits + workerIDBits
	l.timestampShift = sequenceBits + serverIDBits + workerIDBits
	l.timestampMask = mask(l.TimestampBits())
	return l
}

func mask(bits uint) uint64 {
	return ^(^uint64(0) << bits)
}

// TimestampBits is what is left of the 63 usable bits.
func (l Layout) TimestampBits() uint {
	return usableBits - l.timestampShift
}

func (l Layout) SequenceMask() uint64 { return l.sequenceMask }
func (l Layout) ServerIDMask() uint64 { return l.serverIDMask }
func (l Layout) WorkerIDMask() uint64 { return l.workerIDMask }

// MaxTimestamp is the last absolute ms reading the layout can encode,
// capped at math.MaxInt64.
func (l Layout) MaxTimestamp() int64 {
	if l.Epoch > 0 && l.timestampMask > uint64(math.MaxInt64-l.Epoch) {
		return math.MaxInt64
	}
	return l.Epoch + int64(l.timestampMask)
}

// Compose packs the fields into an id. Server and worker ids are masked, as
// is a timestamp past MaxTimestamp; Generator never passes one.
func (l Layout) Compose(timestamp int64, sequence, serverID, workerID uint64) uint64 {
	delta := uint64(timestamp-l.Epoch) & l.timestampMask
	return delta<<l.timestampShift |
		(sequence&l.sequenceMask)<<l.sequenceShift |
		(serverID&l.serverIDMask)<<l.serverIDShift |
		workerID&l.workerIDMask
}

// Decompose splits an id back into its fields.
func (l Layout) Decompose(id uint64) ID {
	return ID{
		Value:     id,
		Timestamp: int64((id>>l.timestampShift)&l.timestampMask) + l.Epoch,
		Sequence:  (id >> l.sequenceShift) & l.sequenceMask,
		ServerID:  (id >> l.serverIDShift) & l.serverIDMask,
		WorkerID:  id & l.workerIDMask,
	}
}
