package detector

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize ограничивает длину одного сообщения воркера.
const maxMessageSize = 64 << 20

// request — кадр маски для воркера. Mask — W·H байт построчно, значения 0 или 255.
type request struct {
	Seq    uint64 `msgpack:"seq"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	Mask   []byte `msgpack:"mask"`
}

type wireLine struct {
	X     int     `msgpack:"x"`
	Y     int     `msgpack:"y"`
	Angle float64 `msgpack:"angle"`
	Width float64 `msgpack:"width"`
}

type wirePoint struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// response — ответ воркера. nil в Lines или Points означает пустой слот.
type response struct {
	Seq    uint64       `msgpack:"seq"`
	Lines  []*wireLine  `msgpack:"lines"`
	Points []*wirePoint `msgpack:"points"`
	Error  string       `msgpack:"error"`
}

// writeMessage пишет 4 байта длины (big-endian) и тело msgpack одним вызовом Write.
func writeMessage(w io.Writer, v any) error {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if len(body) > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(body))
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	_, err = w.Write(buf)
	return err
}

// readMessage читает одно сообщение. Ошибка чтения оставляет поток в неизвестном состоянии.
func readMessage(r io.Reader, v any) (stream error, decode error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return fmt.Errorf("read length prefix: %w", err), nil
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", n), nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read message body (%d bytes): %w", n, err), nil
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return nil, nil
}
