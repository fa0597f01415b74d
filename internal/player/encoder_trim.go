package player

import (
	"bytes"
	"encoding/binary"
	"io"
)

// mp3DecoderDelay is the delay, in samples, a Layer III decoder adds in
// front of the encoded signal.
const mp3DecoderDelay = 529

// frameWindow covers a frame header, CRC, side info and a full Info tag.
const frameWindow = 192

// xingFields lists the optional Info tag fields in the order they appear,
// keyed by their flag bit.
var xingFields = []struct {
	flag uint32
	size int
}{
	{0x1, 4},   // frame count
	{0x2, 4},   // byte count
	{0x4, 100}, // seek table
	{0x8, 4},   // quality
}

// encoderTrim is the silence an MP3 encoder put around a recording, in
// samples per channel. lead includes the decoder delay.
type encoderTrim struct {
	lead, tail int64
}

// span returns the byte range of decoded PCM that holds the recording.
// The whole stream is kept when the length is unknown or the trim would
// leave nothing.
func (t encoderTrim) span(length, frameSize int64) (start, n int64) {
	start = t.lead * frameSize
	n = length - start - t.tail*frameSize
	if length <= 0 || n <= 0 {
		return 0, length
	}
	return start, n
}

// mp3Trim reads the MP3 encoder trim of the media without moving its
// read position. Local files and fetched messages both support ReadAt;
// other sources are read through Seek and rewound.
func (s *Source) mp3Trim() (encoderTrim, error) {
	if ra, ok := s.ReadSeeker.(io.ReaderAt); ok {
		return readEncoderTrim(ra)
	}
	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return encoderTrim{}, err
	}
	trim, err := readEncoderTrim(seekReaderAt{s.ReadSeeker})
	if _, serr := s.Seek(pos, io.SeekStart); err == nil {
		err = serr
	}
	return trim, err
}

type seekReaderAt struct {
	rs io.ReadSeeker
}

func (r seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(r.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// readEncoderTrim looks for a LAME Info or Xing tag in the first audio
// frame. Media without one, including media that is not MP3 at all, has no
// trim.
func readEncoderTrim(r io.ReaderAt) (encoderTrim, error) {
	off, err := audioStart(r)
	if err != nil {
		return encoderTrim{}, err
	}
	buf := make([]byte, frameWindow)
	n, err := r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return encoderTrim{}, err
	}
	buf = buf[:n]

	tagOff, ok := infoTagOffset(buf)
	if !ok {
		return encoderTrim{}, nil
	}
	trim, _ := parseInfoTag(buf[tagOff:])
	return trim, nil
}

// audioStart returns the offset of the first byte after an ID3v2 tag.
func audioStart(r io.ReaderAt) (int64, error) {
	hdr := make([]byte, 10)
	n, err := r.ReadAt(hdr, 0)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if n < len(hdr) || !bytes.HasPrefix(hdr, []byte("ID3")) {
		return 0, nil
	}
	size := int64(hdr[6]&0x7f)<<21 | int64(hdr[7]&0x7f)<<14 | int64(hdr[8]&0x7f)<<7 | int64(hdr[9]&0x7f)
	if hdr[5]&0x10 != 0 {
		size += 10 // footer
	}
	return 10 + size, nil
}

// infoTagOffset returns where the Info tag would start inside a Layer III
// frame, or false when frame does not start with a Layer III header.
func infoTagOffset(frame []byte) (int, bool) {
	if len(frame) < 4 {
		return 0, false
	}
	h := binary.BigEndian.Uint32(frame)
	version := (h >> 19) & 0x3
	layer := (h >> 17) & 0x3
	if h>>21 != 0x7ff || layer != 0x1 || version == 0x1 {
		return 0, false
	}

	mpeg1 := version == 0x3
	mono := (h>>6)&0x3 == 0x3
	off := 4
	if h&(1<<16) == 0 {
		off += 2 // CRC
	}
	switch {
	case mpeg1 && !mono:
		off += 32
	case mpeg1 || !mono:
		off += 17
	default:
		off += 9
	}
	return off, true
}

// parseInfoTag reads the encoder delay and padding from the LAME extension
// that follows an Info or Xing tag.
func parseInfoTag(b []byte) (encoderTrim, bool) {
	if len(b) < 8 || !(bytes.HasPrefix(b, []byte("Info")) || bytes.HasPrefix(b, []byte("Xing"))) {
		return encoderTrim{}, false
	}
	flags := binary.BigEndian.Uint32(b[4:8])
	off := 8
	for _, f := range xingFields {
		if flags&f.flag != 0 {
			off += f.size
		}
	}
	if len(b) < off+24 {
		return encoderTrim{}, false
	}

	// Delay and padding are two 12-bit values at bytes 21-23 of the
	// extension.
	dp := b[off+21 : off+24]
	delay := int64(dp[0])<<4 | int64(dp[1]>>4)
	padding := int64(dp[1]&0x0f)<<8 | int64(dp[2])
	if delay == 0 && padding == 0 {
		return encoderTrim{}, false
	}
	return encoderTrim{
		lead: delay + mp3DecoderDelay,
		tail: max(padding-mp3DecoderDelay, 0),
	}, true
}
