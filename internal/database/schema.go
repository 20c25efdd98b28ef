package database

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    telegram_id BIGINT NOT NULL UNIQUE,
    username VARCHAR(64),
    balance INT NOT NULL DEFAULT 0,
    photoshoot_credits INT NOT NULL DEFAULT 0,
    is_admin TINYINT(1) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS star_payments (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    telegram_id BIGINT NOT NULL,
    offer_code VARCHAR(64) NOT NULL,
    amount_stars INT NOT NULL,
    credits INT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    payload VARCHAR(128) NOT NULL UNIQUE,
    telegram_charge_id VARCHAR(255),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_star_payments_telegram (telegram_id)
);

CREATE TABLE IF NOT EXISTS photoshoot_logs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    telegram_id BIGINT NOT NULL,
    style_title VARCHAR(128) NOT NULL,
    status VARCHAR(16) NOT NULL,
    cost_units INT NOT NULL DEFAULT 0,
    cost_credits INT NOT NULL DEFAULT 0,
    provider VARCHAR(64) NOT NULL,
    error_message VARCHAR(512),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    KEY idx_photoshoot_logs_telegram (telegram_id)
);

CREATE TABLE IF NOT EXISTS style_prompts (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    title VARCHAR(128) NOT NULL UNIQUE,
    description VARCHAR(512) NOT NULL,
    prompt VARCHAR(2048) NOT NULL,
    image_filename VARCHAR(128) NOT NULL DEFAULT '1.jpeg',
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`
