package audio

// BytesToInt16 将小端字节切片转换为 int16 样本。
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// Int16ToBytes 将 int16 样本转换为小端字节切片。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// DownmixStereo 将交错立体声 int16 样本左右声道取平均，得到单声道。
// 奇数个样本时丢弃不完整的尾帧。
func DownmixStereo(in []int16) []int16 {
	n := len(in) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		left := int32(in[2*i])
		right := int32(in[2*i+1])
		out[i] = int16((left + right) / 2)
	}
	return out
}
