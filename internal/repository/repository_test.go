package repository

// Postgres実装が各インターフェースを満たすことをコンパイル時に検証する。
var (
	_ UserRepository     = (*PostgresUserRepo)(nil)
	_ InterestRepository = (*PostgresInterestRepo)(nil)
	_ DigestRepository   = (*PostgresDigestRepo)(nil)
)
