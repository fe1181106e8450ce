package auth

import (
	"bytes"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/iurnickita/bookstore/internal/store"
	"github.com/iurnickita/bookstore/internal/token"
)

type Auth interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

const (
	HeaderUserCodeKey = "userCode"
	cookieUserToken   = "bookstoreUserToken"
)

type auth struct {
	store store.Store
}

func NewAuth(store store.Store) Auth {
	return &auth{store: store}
}

type credentialsJSONRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (a *auth) Register(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var credentials credentialsJSONRequest
	err = json.Unmarshal(buf.Bytes(), &credentials)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if credentials.Login == "" || credentials.Password == "" {
		http.Error(w, "login and password are required", http.StatusBadRequest)
		return
	}

	// в базе хранится только хеш пароля
	hash, err := bcrypt.GenerateFromPassword([]byte(credentials.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	userCode, err := a.store.AuthRegister(r.Context(), credentials.Login, string(hash))
	if err != nil {
		switch err {
		case store.ErrAlreadyExists:
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	a.setTokenCookie(w, userCode)
}

func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var credentials credentialsJSONRequest
	err = json.Unmarshal(buf.Bytes(), &credentials)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userCode, hash, err := a.store.AuthLogin(r.Context(), credentials.Login)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			http.Error(w, "wrong login/password", http.StatusUnauthorized)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(credentials.Password)) != nil {
		http.Error(w, "wrong login/password", http.StatusUnauthorized)
		return
	}

	a.setTokenCookie(w, userCode)
}

func (a *auth) setTokenCookie(w http.ResponseWriter, userCode string) {
	tokenString, err := token.BuildJWTString(userCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieUserToken,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
	})
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// получение id пользователя
		userCode, err := a.getUserCode(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// дальше id пользователя передается явно, из заголовка в параметры
		r.Header.Set(HeaderUserCodeKey, userCode)

		// передаём управление хендлеру
		h.ServeHTTP(w, r)
	}
}

func (a *auth) getUserCode(_ http.ResponseWriter, r *http.Request) (string, error) {
	// куки пользователя
	var userCode string
	tokenCookie, err := r.Cookie(cookieUserToken)
	if err != nil {
		return "", err
	}
	userCode, err = token.GetUserCode(tokenCookie.Value)
	if err != nil {
		return "", err
	}
	return userCode, nil
}
