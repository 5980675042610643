package postrge

const (
	MigrationQuery = `
	CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		pending_balance BIGINT NOT NULL DEFAULT 0 CHECK (pending_balance >= 0),
		cash_owed BIGINT NOT NULL DEFAULT 0 CHECK (cash_owed >= 0),
		total_earned BIGINT NOT NULL DEFAULT 0 CHECK (total_earned >= 0),
		total_withdrawn BIGINT NOT NULL DEFAULT 0 CHECK (total_withdrawn >= 0),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		wallet_user_id TEXT NOT NULL REFERENCES wallets(user_id),
		order_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		amount BIGINT NOT NULL,
		balance_before BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_movement
		ON transactions(wallet_user_id, order_id, type)
		WHERE status <> 'failed' AND order_id <> '';

	CREATE TABLE IF NOT EXISTS held_funds (
		id UUID PRIMARY KEY,
		order_id TEXT UNIQUE NOT NULL,
		business_id TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		business_amount BIGINT NOT NULL CHECK (business_amount >= 0),
		delivery_amount BIGINT NOT NULL CHECK (delivery_amount >= 0),
		platform_amount BIGINT NOT NULL CHECK (platform_amount >= 0),
		status TEXT NOT NULL,
		release_after TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS withdrawals (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		status TEXT NOT NULL,
		bank_account TEXT NOT NULL,
		bank_name TEXT NOT NULL DEFAULT '',
		transfer_id TEXT NOT NULL DEFAULT '',
		fail_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS order_financials (
		order_id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		total BIGINT NOT NULL CHECK (total > 0),
		subtotal BIGINT NOT NULL CHECK (subtotal > 0),
		delivery_fee BIGINT NOT NULL CHECK (delivery_fee >= 0),
		platform_fee BIGINT NOT NULL DEFAULT 0,
		business_earnings BIGINT NOT NULL DEFAULT 0,
		delivery_earnings BIGINT NOT NULL DEFAULT 0,
		cash_collected BOOLEAN NOT NULL DEFAULT FALSE,
		cash_settled BOOLEAN NOT NULL DEFAULT FALSE,
		delivered_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		reference TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_held_funds_due ON held_funds(release_after) WHERE status = 'held';
	CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals(user_id);
	CREATE INDEX IF NOT EXISTS idx_order_financials_delivered ON order_financials(delivered_at);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
	`
)
