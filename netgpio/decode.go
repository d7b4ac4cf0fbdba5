package netgpio

// Decode splits msg into frames of width bits. Only '0' and '1' count;
// every other byte is skipped. A trailing partial frame is padded with
// false on the right.
func Decode(msg []byte, width int) [][]bool {
	if width <= 0 {
		return nil
	}

	var frames [][]bool
	current := make([]bool, 0, width)
	for _, ch := range msg {
		if ch != '0' && ch != '1' {
			continue
		}
		current = append(current, ch == '1')
		if len(current) == width {
			frames = append(frames, current)
			current = make([]bool, 0, width)
		}
	}

	if len(current) > 0 {
		padded := make([]bool, width)
		copy(padded, current)
		frames = append(frames, padded)
	}

	return frames
}

func countBits(msg []byte) int {
	n := 0
	for _, ch := range msg {
		if ch == '0' || ch == '1' {
			n++
		}
	}
	return n
}
