package stream

import (
	"sync/atomic"
	"time"
)

// TrafficStats 某一时刻的流量快照
type TrafficStats struct {
	BytesIn   int64     `json:"bytes_in"`
	BytesOut  int64     `json:"bytes_out"`
	FramesIn  int64     `json:"frames_in"`
	FramesOut int64     `json:"frames_out"`
	Sampled   time.Time `json:"sampled"`
}

// TotalBytes 收发字节合计
func (s TrafficStats) TotalBytes() int64 {
	return s.BytesIn + s.BytesOut
}

// TrafficMeter 单条流的收发计数器
//
// 计数全部用原子操作，读写路径不加锁。字节数按线上字节统计，
// 即帧头加密文，而不是明文载荷。
type TrafficMeter struct {
	bytesIn   atomic.Int64
	bytesOut  atomic.Int64
	framesIn  atomic.Int64
	framesOut atomic.Int64
}

// NewTrafficMeter 创建流量计数器
func NewTrafficMeter() *TrafficMeter {
	return &TrafficMeter{}
}

// addIn 记录一个入站帧
func (tm *TrafficMeter) addIn(wireBytes int64) {
	tm.bytesIn.Add(wireBytes)
	tm.framesIn.Add(1)
}

// addOut 记录一个出站帧
func (tm *TrafficMeter) addOut(wireBytes int64) {
	tm.bytesOut.Add(wireBytes)
	tm.framesOut.Add(1)
}

// Snapshot 读取当前计数
func (tm *TrafficMeter) Snapshot() TrafficStats {
	return TrafficStats{
		BytesIn:   tm.bytesIn.Load(),
		BytesOut:  tm.bytesOut.Load(),
		FramesIn:  tm.framesIn.Load(),
		FramesOut: tm.framesOut.Load(),
		Sampled:   time.Now(),
	}
}
