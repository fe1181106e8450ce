package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/bookstore/internal/model"
	"github.com/iurnickita/bookstore/internal/store/config"
)

type Store interface {
	AuthRegister(ctx context.Context, login string, passwordHash string) (string, error)
	AuthLogin(ctx context.Context, login string) (string, string, error)
	ProductGet(ctx context.Context, isbn string) (model.Product, error)
	ProductPost(ctx context.Context, product model.Product) error
	OrderCreate(ctx context.Context, order model.Order, lines []model.OrderLine) error
	OrderGet(ctx context.Context, key model.OrderKey) (model.Order, error)
	OrderGetAll(ctx context.Context, account string) ([]model.Order, error)
	OrderLinesGet(ctx context.Context, key model.OrderKey) ([]model.OrderLine, error)
	OrderSetStatus(ctx context.Context, key model.OrderKey, from string, to string) error
	OrderFail(ctx context.Context, key model.OrderKey) error
	OrderPrepare(ctx context.Context, key model.OrderKey) error
	PaymentAttempt(ctx context.Context, payment model.Payment) error
	PaymentsGet(ctx context.Context, key model.OrderKey) ([]model.Payment, error)
	PaymentComplete(ctx context.Context, key model.OrderKey) error
	PaymentFail(ctx context.Context, key model.OrderKey) error
	StockCurrent(ctx context.Context, isbn string) (int, error)
	StockInbound(ctx context.Context, isbn string, quantity int) error
	CartGet(ctx context.Context, account string) ([]model.CartLine, error)
	CartDelete(ctx context.Context, account string, isbn string) error
}

var (
	ErrNoRows            = errors.New("no rows")
	ErrAlreadyExists     = errors.New("already exists")
	ErrStatusConflict    = errors.New("status conflict")
	ErrNoPaymentAttempt  = errors.New("no payment attempt")
	ErrInsufficientStock = errors.New("insufficient stock")
)

const pgUniqueViolation = "23505"

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Таблица учетных записей. В password хранится bcrypt-хеш
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS auth (" +
			" login VARCHAR (30) PRIMARY KEY," +
			" uuid SERIAL UNIQUE," +
			" password VARCHAR (72) NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица каталога
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS product (" +
			" isbn VARCHAR (20) PRIMARY KEY," +
			" product_name VARCHAR (200) NOT NULL," +
			" author VARCHAR (100)," +
			" price INTEGER NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица корзины
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS cart (" +
			" account VARCHAR (10)," +
			" isbn VARCHAR (20)," +
			" quantity INTEGER NOT NULL," +
			" reg_date TIMESTAMP NOT NULL," +
			" PRIMARY KEY (account, isbn)" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица заказов. order - зарезервированное слово, поэтому order_header
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS order_header (" +
			" order_id VARCHAR (20)," +
			" account VARCHAR (10)," +
			" total_category INTEGER NOT NULL," +
			" total_quantity INTEGER NOT NULL," +
			" total_paid INTEGER NOT NULL," +
			" order_date TIMESTAMP NOT NULL," +
			" order_status VARCHAR (20) NOT NULL," +
			" update_date TIMESTAMP NOT NULL," +
			" PRIMARY KEY (order_id, account)" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица позиций заказа. Создается вместе с заказом и не меняется
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS order_detail (" +
			" order_id VARCHAR (20)," +
			" account VARCHAR (10)," +
			" isbn VARCHAR (20)," +
			" quantity INTEGER NOT NULL," +
			" unit_price INTEGER NOT NULL," +
			" line_total INTEGER NOT NULL," +
			" PRIMARY KEY (order_id, account, isbn)" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица оплат. Одна строка на попытку оплаты
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS payment (" +
			" payment_id VARCHAR (40)," +
			" order_id VARCHAR (20)," +
			" account VARCHAR (10)," +
			" method VARCHAR (4) NOT NULL," +
			" status VARCHAR (20) NOT NULL," +
			" payment_date TIMESTAMP NOT NULL," +
			" update_date TIMESTAMP NOT NULL," +
			" PRIMARY KEY (payment_id, order_id, account)" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица остатков. Представляет собой журнал: для каждого движения
	// создается новая запись, актуальный остаток - after_quantity последней.
	// Записи нельзя редактировать/удалять
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS stock (" +
			" stock_id SERIAL PRIMARY KEY," +
			" isbn VARCHAR (20) NOT NULL," +
			" in_out_type VARCHAR (10) NOT NULL," +
			" quantity INTEGER NOT NULL," +
			" before_quantity INTEGER NOT NULL," +
			" after_quantity INTEGER NOT NULL," +
			" update_date TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (store *store) AuthRegister(ctx context.Context, login string, passwordHash string) (string, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO auth (login, password)"+
			" VALUES ($1, $2)"+
			" RETURNING uuid",
		login,
		passwordHash)

	var uuid int
	err := row.Scan(&uuid)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrAlreadyExists
		}
		return "", err
	}

	return strconv.Itoa(uuid), nil
}

func (store *store) AuthLogin(ctx context.Context, login string) (string, string, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT uuid, password FROM auth"+
			" WHERE login = $1",
		login)
	var uuid int
	var passwordHash string
	err := row.Scan(&uuid, &passwordHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", ErrNoRows
		}
		return "", "", err
	}

	return strconv.Itoa(uuid), passwordHash, nil
}

func (store *store) ProductGet(ctx context.Context, isbn string) (model.Product, error) {
	var product model.Product
	row := store.database.QueryRowContext(ctx,
		"SELECT isbn, product_name, author, price FROM product"+
			" WHERE isbn = $1",
		isbn)
	err := row.Scan(&product.Isbn,
		&product.Name,
		&product.Author,
		&product.Price)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Product{}, ErrNoRows
		}
		return model.Product{}, err
	}
	return product, nil
}

func (store *store) ProductPost(ctx context.Context, product model.Product) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO product (isbn, product_name, author, price)"+
			" VALUES ($1, $2, $3, $4)"+
			" ON CONFLICT (isbn) DO UPDATE"+
			" SET product_name = $2, author = $3, price = $4",
		product.Isbn,
		product.Name,
		product.Author,
		product.Price)
	return err
}

// OrderCreate записывает заказ и все его позиции в одной транзакции
func (store *store) OrderCreate(ctx context.Context, order model.Order, lines []model.OrderLine) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO order_header (order_id, account, total_category, total_quantity, total_paid, order_date, order_status, update_date)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		order.Key.OrderID,
		order.Key.Account,
		order.Data.TotalCategory,
		order.Data.TotalQuantity,
		order.Data.TotalPaid,
		order.Data.OrderDate,
		order.Data.Status,
		order.Data.UpdateDate)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}

	for _, line := range lines {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_detail (order_id, account, isbn, quantity, unit_price, line_total)"+
				" VALUES ($1, $2, $3, $4, $5, $6)",
			line.Key.OrderID,
			line.Key.Account,
			line.Key.Isbn,
			line.Data.Quantity,
			line.Data.UnitPrice,
			line.Data.LineTotal)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return err
		}
	}

	return tx.Commit()
}

func (store *store) OrderGet(ctx context.Context, key model.OrderKey) (model.Order, error) {
	var order model.Order
	row := store.database.QueryRowContext(ctx,
		"SELECT order_id, account, total_category, total_quantity, total_paid, order_date, order_status, update_date"+
			" FROM order_header"+
			" WHERE order_id = $1"+
			"   AND account = $2",
		key.OrderID,
		key.Account)
	err := row.Scan(&order.Key.OrderID,
		&order.Key.Account,
		&order.Data.TotalCategory,
		&order.Data.TotalQuantity,
		&order.Data.TotalPaid,
		&order.Data.OrderDate,
		&order.Data.Status,
		&order.Data.UpdateDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Order{}, ErrNoRows
		}
		return model.Order{}, err
	}
	return order, nil
}

func (store *store) OrderGetAll(ctx context.Context, account string) ([]model.Order, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT order_id, account, total_category, total_quantity, total_paid, order_date, order_status, update_date"+
			" FROM order_header"+
			" WHERE account = $1"+
			" ORDER BY order_date DESC",
		account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		var order model.Order
		err := rows.Scan(&order.Key.OrderID,
			&order.Key.Account,
			&order.Data.TotalCategory,
			&order.Data.TotalQuantity,
			&order.Data.TotalPaid,
			&order.Data.OrderDate,
			&order.Data.Status,
			&order.Data.UpdateDate)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

func (store *store) OrderLinesGet(ctx context.Context, key model.OrderKey) ([]model.OrderLine, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT order_id, account, isbn, quantity, unit_price, line_total"+
			" FROM order_detail"+
			" WHERE order_id = $1"+
			"   AND account = $2"+
			" ORDER BY isbn",
		key.OrderID,
		key.Account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.OrderLine
	for rows.Next() {
		var line model.OrderLine
		err := rows.Scan(&line.Key.OrderID,
			&line.Key.Account,
			&line.Key.Isbn,
			&line.Data.Quantity,
			&line.Data.UnitPrice,
			&line.Data.LineTotal)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// OrderSetStatus меняет статус только из ожидаемого текущего.
// Если строка не обновилась - статус уже поменял кто-то другой
func (store *store) OrderSetStatus(ctx context.Context, key model.OrderKey, from string, to string) error {
	res, err := store.database.ExecContext(ctx,
		"UPDATE order_header"+
			" SET order_status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4"+
			"   AND order_status = $5",
		to,
		time.Now(),
		key.OrderID,
		key.Account,
		from)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// OrderFail переводит заказ в ORDER_FAILED и закрывает
// незавершенные попытки оплаты одной транзакцией
func (store *store) OrderFail(ctx context.Context, key model.OrderKey) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		"UPDATE order_header"+
			" SET order_status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4"+
			"   AND order_status = $5",
		model.OrderStatusFailed,
		now,
		key.OrderID,
		key.Account,
		model.OrderStatusRequested)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE payment"+
			" SET status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4"+
			"   AND status = $5",
		model.PaymentStatusFailed,
		now,
		key.OrderID,
		key.Account,
		model.PaymentStatusAttempt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// OrderPrepare переводит заказ в PREPARING_PRODUCT и списывает остатки
// по всем позициям. Либо списывается все, либо ничего.
// Движения по одному isbn сериализуются advisory-блокировкой
func (store *store) OrderPrepare(ctx context.Context, key model.OrderKey) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	row := tx.QueryRowContext(ctx,
		"SELECT order_status FROM order_header"+
			" WHERE order_id = $1"+
			"   AND account = $2"+
			" FOR UPDATE",
		key.OrderID,
		key.Account)
	err = row.Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNoRows
		}
		return err
	}
	if !model.OrderCanTransition(status, model.OrderStatusPreparing) {
		return ErrStatusConflict
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT isbn, quantity FROM order_detail"+
			" WHERE order_id = $1"+
			"   AND account = $2",
		key.OrderID,
		key.Account)
	if err != nil {
		return err
	}
	type outbound struct {
		isbn     string
		quantity int
	}
	var outbounds []outbound
	for rows.Next() {
		var o outbound
		if err := rows.Scan(&o.isbn, &o.quantity); err != nil {
			rows.Close()
			return err
		}
		outbounds = append(outbounds, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// блокировки берутся в отсортированном порядке
	sort.Slice(outbounds, func(i, j int) bool { return outbounds[i].isbn < outbounds[j].isbn })

	now := time.Now()
	for _, o := range outbounds {
		before, err := stockCurrentTx(ctx, tx, o.isbn)
		if err != nil {
			return err
		}
		if before < o.quantity {
			return ErrInsufficientStock
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO stock (isbn, in_out_type, quantity, before_quantity, after_quantity, update_date)"+
				" VALUES ($1, $2, $3, $4, $5, $6)",
			o.isbn,
			model.StockOutbound,
			o.quantity,
			before,
			before-o.quantity,
			now)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE order_header"+
			" SET order_status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4",
		model.OrderStatusPreparing,
		now,
		key.OrderID,
		key.Account)
	if err != nil {
		return err
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// stockCurrentTx берет advisory-блокировку по isbn и читает актуальный остаток.
// Блокировка держится до конца транзакции
func stockCurrentTx(ctx context.Context, tx execer, isbn string) (int, error) {
	_, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))",
		isbn)
	if err != nil {
		return 0, err
	}

	var after int
	row := tx.QueryRowContext(ctx,
		"SELECT after_quantity FROM stock"+
			" WHERE isbn = $1"+
			" ORDER BY stock_id DESC"+
			" LIMIT 1",
		isbn)
	err = row.Scan(&after)
	if err != nil && err != sql.ErrNoRows { // если нет строки - остаток 0
		return 0, err
	}
	return after, nil
}

// PaymentAttempt закрывает предыдущие попытки оплаты заказа
// и записывает новую попытку в одной транзакции
func (store *store) PaymentAttempt(ctx context.Context, payment model.Payment) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE payment"+
			" SET status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4"+
			"   AND status = $5",
		model.PaymentStatusFailed,
		time.Now(),
		payment.Key.OrderID,
		payment.Key.Account,
		model.PaymentStatusAttempt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO payment (payment_id, order_id, account, method, status, payment_date, update_date)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)",
		payment.Key.PaymentID,
		payment.Key.OrderID,
		payment.Key.Account,
		payment.Data.Method,
		payment.Data.Status,
		payment.Data.PaymentDate,
		payment.Data.UpdateDate)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}

	return tx.Commit()
}

func (store *store) PaymentsGet(ctx context.Context, key model.OrderKey) ([]model.Payment, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT payment_id, order_id, account, method, status, payment_date, update_date"+
			" FROM payment"+
			" WHERE order_id = $1"+
			"   AND account = $2"+
			" ORDER BY payment_date",
		key.OrderID,
		key.Account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []model.Payment
	for rows.Next() {
		var payment model.Payment
		err := rows.Scan(&payment.Key.PaymentID,
			&payment.Key.OrderID,
			&payment.Key.Account,
			&payment.Data.Method,
			&payment.Data.Status,
			&payment.Data.PaymentDate,
			&payment.Data.UpdateDate)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// PaymentComplete завершает попытки оплаты и сам заказ одной транзакцией.
// Повторный вызов по завершенному заказу - не ошибка
func (store *store) PaymentComplete(ctx context.Context, key model.OrderKey) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	row := tx.QueryRowContext(ctx,
		"SELECT order_status FROM order_header"+
			" WHERE order_id = $1"+
			"   AND account = $2"+
			" FOR UPDATE",
		key.OrderID,
		key.Account)
	err = row.Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNoRows
		}
		return err
	}
	if status == model.OrderStatusCompleted {
		return tx.Commit()
	}
	if !model.OrderCanTransition(status, model.OrderStatusCompleted) {
		return ErrStatusConflict
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		"UPDATE payment"+
			" SET status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4"+
			"   AND status = $5",
		model.PaymentStatusCompleted,
		now,
		key.OrderID,
		key.Account,
		model.PaymentStatusAttempt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoPaymentAttempt
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE order_header"+
			" SET order_status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4",
		model.OrderStatusCompleted,
		now,
		key.OrderID,
		key.Account)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// PaymentFail закрывает попытки оплаты, статус заказа не трогает:
// пользователь может повторить оплату другим способом
func (store *store) PaymentFail(ctx context.Context, key model.OrderKey) error {
	_, err := store.database.ExecContext(ctx,
		"UPDATE payment"+
			" SET status = $1, update_date = $2"+
			" WHERE order_id = $3"+
			"   AND account = $4"+
			"   AND status = $5",
		model.PaymentStatusFailed,
		time.Now(),
		key.OrderID,
		key.Account,
		model.PaymentStatusAttempt)
	return err
}

func (store *store) StockCurrent(ctx context.Context, isbn string) (int, error) {
	var after int
	row := store.database.QueryRowContext(ctx,
		"SELECT after_quantity FROM stock"+
			" WHERE isbn = $1"+
			" ORDER BY stock_id DESC"+
			" LIMIT 1",
		isbn)
	err := row.Scan(&after)
	if err != nil && err != sql.ErrNoRows { // если нет строки - остаток 0
		return 0, err
	}
	return after, nil
}

// StockInbound записывает приход под advisory-блокировкой по isbn
func (store *store) StockInbound(ctx context.Context, isbn string, quantity int) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	before, err := stockCurrentTx(ctx, tx, isbn)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO stock (isbn, in_out_type, quantity, before_quantity, after_quantity, update_date)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		isbn,
		model.StockInbound,
		quantity,
		before,
		before+quantity,
		time.Now())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (store *store) CartGet(ctx context.Context, account string) ([]model.CartLine, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT account, isbn, quantity FROM cart"+
			" WHERE account = $1"+
			" ORDER BY reg_date",
		account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.CartLine
	for rows.Next() {
		var line model.CartLine
		err := rows.Scan(&line.Account, &line.Isbn, &line.Quantity)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func (store *store) CartDelete(ctx context.Context, account string, isbn string) error {
	_, err := store.database.ExecContext(ctx,
		"DELETE FROM cart"+
			" WHERE account = $1"+
			"   AND isbn = $2",
		account,
		isbn)
	return err
}
