package domain

// DownloadBatch is a run of descending heights fetched from one gateway
// through one proxy.
type DownloadBatch struct {
	Gateway Gateway
	Proxy   *Proxy
	Heights []int64
}
