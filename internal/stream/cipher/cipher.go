// Package cipher 提供帧体加密套件
//
// 帧体始终整体加密。默认套件 aes-cbc 使用进程内置密钥与固定 IV，
// 与对端约定一致即可互通；它只做混淆，不提供机密性与完整性，
// 需要完整性保护时在配置中选用 xchacha20-poly1305 并注入独立密钥。
package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	coreerrors "framewire/internal/core/errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// Method 加密方法
type Method string

const (
	MethodAESCBC    Method = "aes-cbc"
	MethodXChaCha20 Method = "xchacha20-poly1305"
)

const (
	// KeySize 密钥长度（AES-256 / XChaCha20 统一 32 字节）
	KeySize = 32

	// IVSize aes-cbc 的 IV 长度
	IVSize = aes.BlockSize
)

// Cipher 帧体加密接口
type Cipher interface {
	// Name 返回套件名称
	Name() string

	// Encrypt 加密整段明文，返回帧体
	Encrypt(plain []byte) ([]byte, error)

	// Decrypt 解密整段帧体，返回明文
	Decrypt(body []byte) ([]byte, error)
}

// Config 加密配置
type Config struct {
	Method Method
	Key    []byte // 32 字节；为空使用内置默认
	IV     []byte // aes-cbc 专用，16 字节；为空使用内置默认
}

// New 按配置创建加密套件
func New(cfg Config) (Cipher, error) {
	switch cfg.Method {
	case MethodAESCBC, "":
		return newAESCBC(cfg.Key, cfg.IV)
	case MethodXChaCha20, "chacha20", "xchacha20":
		return newXChaCha(cfg.Key)
	default:
		return nil, coreerrors.Newf(coreerrors.CodeConfigError, "unsupported cipher method: %s", cfg.Method)
	}
}

// Default 返回使用内置密钥的 AES-CBC 实例
func Default() Cipher {
	c, err := New(Config{})
	if err != nil {
		// 内置密钥材料长度固定，构造不会失败
		panic("cipher: built-in default configuration rejected: " + err.Error())
	}
	return c
}

// 内置密钥材料。两端一致即可互通，部署时应通过配置替换。
var (
	defaultKey = []byte("framewire.default.aescbc.key.v1!")
	defaultIV  = []byte("framewire.iv.16b")
)

// ============================================================================
// AES-256-CBC（默认线缆格式）
// ============================================================================

type aesCBCCipher struct {
	block stdcipher.Block
	iv    []byte
}

func newAESCBC(key, iv []byte) (*aesCBCCipher, error) {
	if len(key) == 0 {
		key = defaultKey
	}
	if len(iv) == 0 {
		iv = defaultIV
	}
	if len(key) != KeySize {
		return nil, coreerrors.Newf(coreerrors.CodeConfigError, "aes-cbc requires %d-byte key, got %d", KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, coreerrors.Newf(coreerrors.CodeConfigError, "aes-cbc requires %d-byte IV, got %d", IVSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeEncryptionError, "failed to create AES cipher")
	}

	ivCopy := make([]byte, IVSize)
	copy(ivCopy, iv)
	return &aesCBCCipher{block: block, iv: ivCopy}, nil
}

func (c *aesCBCCipher) Name() string {
	return string(MethodAESCBC)
}

func (c *aesCBCCipher) Encrypt(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "empty plaintext")
	}

	padded := padPKCS7(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	stdcipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return out, nil
}

func (c *aesCBCCipher) Decrypt(body []byte) ([]byte, error) {
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, coreerrors.Newf(coreerrors.CodeEncryptionError,
			"ciphertext length %d is not a positive multiple of the block size", len(body))
	}

	out := make([]byte, len(body))
	stdcipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, body)

	plain, err := unpadPKCS7(out, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// padPKCS7 PKCS#7 填充，明文恰好整块时追加一个整块
func padPKCS7(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// unpadPKCS7 校验并剥离 PKCS#7 填充
func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, coreerrors.New(coreerrors.CodeEncryptionError, "empty padded data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, coreerrors.Newf(coreerrors.CodeEncryptionError, "invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, coreerrors.New(coreerrors.CodeEncryptionError, "invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}

// ============================================================================
// XChaCha20-Poly1305（可选 AEAD 套件）
// ============================================================================

// 帧体格式: [nonce(24字节)][密文+tag]
type xchachaCipher struct {
	aead stdcipher.AEAD
}

func newXChaCha(key []byte) (*xchachaCipher, error) {
	if len(key) == 0 {
		key = defaultKey
	}
	if len(key) != KeySize {
		return nil, coreerrors.Newf(coreerrors.CodeConfigError, "xchacha20-poly1305 requires %d-byte key, got %d", KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeEncryptionError, "failed to create XChaCha20-Poly1305")
	}
	return &xchachaCipher{aead: aead}, nil
}

func (c *xchachaCipher) Name() string {
	return string(MethodXChaCha20)
}

func (c *xchachaCipher) Encrypt(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "empty plaintext")
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeEncryptionError, "failed to generate nonce")
	}

	// Seal 追加到 nonce 之后，输出即完整帧体
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *xchachaCipher) Decrypt(body []byte) ([]byte, error) {
	minLen := chacha20poly1305.NonceSizeX + c.aead.Overhead()
	if len(body) < minLen {
		return nil, coreerrors.Newf(coreerrors.CodeEncryptionError,
			"ciphertext length %d below minimum %d", len(body), minLen)
	}

	nonce := body[:chacha20poly1305.NonceSizeX]
	plain, err := c.aead.Open(nil, nonce, body[chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeEncryptionError, "decryption failed")
	}
	return plain, nil
}

// ============================================================================
// 工具函数
// ============================================================================

// GenerateKey 生成随机密钥
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeEncryptionError, "failed to generate random key")
	}
	return key, nil
}

// GenerateKeyBase64 生成 Base64 编码的密钥
func GenerateKeyBase64() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// GenerateIVBase64 生成 Base64 编码的 aes-cbc IV
func GenerateIVBase64() (string, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeEncryptionError, "failed to generate random IV")
	}
	return base64.StdEncoding.EncodeToString(iv), nil
}

// DecodeKeyBase64 解码 Base64 密钥材料
func DecodeKeyBase64(keyStr string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(keyStr)
}
