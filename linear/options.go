package linear

// Option は WLS の設定を変更する関数です。
type Option func(*WLS)

// WithConditionLimit は XᵀWX の条件数の上限を設定します。
// これを超える場合は特異行列として扱います。
func WithConditionLimit(limit float64) Option {
	return func(w *WLS) {
		w.condLimit = limit
	}
}

// WithParallelThreshold は重み付き計画行列を並列に組み立てる行数の閾値を設定します。
func WithParallelThreshold(rows int) Option {
	return func(w *WLS) {
		w.parallelThreshold = rows
	}
}
