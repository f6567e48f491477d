package util

import (
	"bytes"
	"testing"
)

func TestAES(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	plainText := []byte("hello world")
	aad := []byte("context")

	t.Run("EncryptDecryptWithAAD", func(t *testing.T) {
		cipherText, err := EncryptAESWithAAD(plainText, key, aad)
		if err != nil {
			t.Fatalf("EncryptAESWithAAD failed: %v", err)
		}

		decrypted, err := DecryptAESWithAAD(cipherText, key, aad)
		if err != nil {
			t.Fatalf("DecryptAESWithAAD failed: %v", err)
		}

		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("TamperAAD", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		_, err := DecryptAESWithAAD(cipherText, key, []byte("wrong context"))
		if err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		cipherText[len(cipherText)-1] ^= 0xFF
		_, err := DecryptAESWithAAD(cipherText, key, aad)
		if err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		_, err := EncryptAESWithAAD(plainText, []byte("too short"), aad)
		if err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})
}

func TestCBC(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, LegacyKeySize)
	iv := bytes.Repeat([]byte{0x22}, 16)

	t.Run("RoundTrip", func(t *testing.T) {
		for _, n := range []int{0, 1, 15, 16, 17, 64} {
			plain := bytes.Repeat([]byte{'x'}, n)
			cipherText, err := EncryptCBC(plain, key, iv)
			if err != nil {
				t.Fatalf("EncryptCBC(%d) failed: %v", n, err)
			}
			if len(cipherText)%16 != 0 || len(cipherText) <= n {
				t.Fatalf("EncryptCBC(%d) produced %d bytes", n, len(cipherText))
			}
			decrypted, err := DecryptCBC(cipherText, key, iv)
			if err != nil {
				t.Fatalf("DecryptCBC(%d) failed: %v", n, err)
			}
			if !bytes.Equal(plain, decrypted) {
				t.Errorf("round trip mismatch for %d bytes", n)
			}
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		cipherText, _ := EncryptCBC([]byte("secret value"), key, iv)
		other := bytes.Repeat([]byte{0x33}, LegacyKeySize)
		decrypted, err := DecryptCBC(cipherText, other, iv)
		if err == nil && bytes.Equal(decrypted, []byte("secret value")) {
			t.Error("expected wrong key to fail or produce different plaintext")
		}
	})

	t.Run("RejectPartialBlock", func(t *testing.T) {
		if _, err := DecryptCBC([]byte("short"), key, iv); err == nil {
			t.Error("expected error for partial block")
		}
	})

	t.Run("RejectBadIV", func(t *testing.T) {
		if _, err := EncryptCBC([]byte("a"), key, iv[:8]); err == nil {
			t.Error("expected error for short IV")
		}
	})
}

func TestPKCS7(t *testing.T) {
	padded := PadPKCS7([]byte("ABC"), 8)
	if !bytes.Equal(padded, []byte{'A', 'B', 'C', 5, 5, 5, 5, 5}) {
		t.Fatalf("unexpected padding: %v", padded)
	}
	unpadded, err := UnpadPKCS7(padded, 8)
	if err != nil {
		t.Fatalf("UnpadPKCS7 failed: %v", err)
	}
	if string(unpadded) != "ABC" {
		t.Errorf("expected ABC, got %q", unpadded)
	}

	if _, err := UnpadPKCS7([]byte{1, 2, 3, 4, 5, 6, 7, 9}, 8); err == nil {
		t.Error("expected error for pad byte larger than block")
	}
	if _, err := UnpadPKCS7([]byte{1, 2, 3, 4, 5, 6, 2, 3}, 8); err == nil {
		t.Error("expected error for inconsistent padding")
	}
}

func TestPBKDF2(t *testing.T) {
	// RFC 6070 test vector.
	got := DerivePBKDF2SHA1([]byte("password"), []byte("salt"), 4096, 20)
	want, _ := HexDecode("4b007901b765489abead49d926f721d065a429c1")
	if !bytes.Equal(got, want) {
		t.Errorf("expected %x, got %x", want, got)
	}
}

func TestArgon2id(t *testing.T) {
	params, _ := Argon2idProfile(KDFProfileInteractive)
	passphrase := []byte("correct horse battery staple")
	salt := []byte("random salt 1234")

	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}

	if len(key) != 32 {
		t.Errorf("expected key length 32, got %d", len(key))
	}

	match, err := CompareArgon2idKey(passphrase, salt, params, key)
	if err != nil {
		t.Fatalf("CompareArgon2idKey failed: %v", err)
	}
	if !match {
		t.Error("expected CompareArgon2idKey to return true")
	}

	match, _ = CompareArgon2idKey([]byte("wrong passphrase"), salt, params, key)
	if match {
		t.Error("expected CompareArgon2idKey to return false for wrong passphrase")
	}

	params.KeyLen = 16
	if _, err := DeriveArgon2idKey(passphrase, salt, params); err == nil {
		t.Error("expected error for 16-byte key length")
	}
}

func TestBytes(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}

	copied := CopyBytes(a)
	if !bytes.Equal(copied, a) {
		t.Error("CopyBytes failed")
	}
	copied[0] = 0xFF
	if a[0] == 0xFF {
		t.Error("CopyBytes should return a new slice")
	}

	if !EqualBytes(a, []byte{0x01, 0x02, 0x03}) {
		t.Error("EqualBytes should match identical slices")
	}
	if EqualBytes(a, []byte{0x01, 0x02}) {
		t.Error("EqualBytes should reject different lengths")
	}

	WipeBytes(copied)
	if !bytes.Equal(copied, make([]byte, 3)) {
		t.Errorf("WipeBytes left %v", copied)
	}
}

func TestEncoding(t *testing.T) {
	s := "test string"
	encoded := HexEncode([]byte(s))
	decoded, err := HexDecode(encoded)
	if err != nil {
		t.Fatalf("HexDecode failed: %v", err)
	}
	if string(decoded) != s {
		t.Errorf("expected %s, got %s", s, string(decoded))
	}

	normalized := Normalize("cafe\u0301") // é in NFD
	if normalized != "cafe\u0301" {
		t.Errorf("Normalize failed, got %q", normalized)
	}
	if string(NormalizeBytes([]byte("caf\u00e9"))) != "cafe\u0301" {
		t.Error("NormalizeBytes should decompose precomposed characters")
	}

	t.Run("Fold", func(t *testing.T) {
		if !EqualFold("Title", "tITLE") {
			t.Error("EqualFold should ignore case")
		}
		if CompareFold("alpha", "BETA") >= 0 {
			t.Error("alpha should sort before BETA")
		}
		if CompareFold("\u00c4bc", "\u00e4BC") != 0 {
			t.Error("folding should equate non-ASCII letters across case")
		}
		if CompareFold("abc", "_x") >= 0 {
			t.Error("letters compare by upper case, so abc sorts before _x")
		}
		if CompareFold("a", "AB") >= 0 || CompareFold("AB", "a") <= 0 {
			t.Error("a prefix should sort first")
		}
		if EqualFold("stra\u00dfe", "STRASSE") {
			t.Error("simple case mapping should not expand sharp s")
		}
		if EqualFold("ab", "abc") {
			t.Error("EqualFold should compare lengths")
		}
	})
}

func TestRandom(t *testing.T) {
	b1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(b1) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(b1))
	}
	b2, _ := RandomBytes(32)
	if bytes.Equal(b1, b2) {
		t.Error("RandomBytes should not repeat")
	}

	buf := make([]byte, 16)
	if err := FillRandom(buf); err != nil {
		t.Fatalf("FillRandom failed: %v", err)
	}
	if bytes.Equal(buf, make([]byte, 16)) {
		t.Error("FillRandom left buffer zeroed")
	}
}

func TestArgon2idProfile_AllProfiles(t *testing.T) {
	profiles := []struct {
		name      string
		minTime   uint32
		minMemKiB uint32
	}{
		{KDFProfileInteractive, 2, 19 * 1024},
		{KDFProfileModerate, 3, 64 * 1024},
		{KDFProfileSensitive, 4, 128 * 1024},
	}

	for _, tc := range profiles {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Argon2idProfile(tc.name)
			if err != nil {
				t.Fatalf("Argon2idProfile(%q) failed: %v", tc.name, err)
			}
			if p.Time < tc.minTime {
				t.Errorf("profile %q: Time=%d, want at least %d", tc.name, p.Time, tc.minTime)
			}
			if p.MemoryKiB < tc.minMemKiB {
				t.Errorf("profile %q: MemoryKiB=%d, want at least %d", tc.name, p.MemoryKiB, tc.minMemKiB)
			}
			if err := ValidateArgon2idParams(p); err != nil {
				t.Errorf("profile %q failed validation: %v", tc.name, err)
			}
		})
	}

	if _, err := Argon2idProfile("nonexistent"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestValidateArgon2idParams(t *testing.T) {
	t.Run("ValidParams", func(t *testing.T) {
		if err := ValidateArgon2idParams(DefaultArgon2idParams()); err != nil {
			t.Errorf("default params should be valid: %v", err)
		}
	})

	t.Run("MemoryTooLow", func(t *testing.T) {
		p := DefaultArgon2idParams()
		p.MemoryKiB = 1024
		if err := ValidateArgon2idParams(p); err == nil {
			t.Error("expected error for MemoryKiB=1024")
		}
	})

	t.Run("ParallelismTooLow", func(t *testing.T) {
		p := DefaultArgon2idParams()
		p.Parallelism = 0
		if err := ValidateArgon2idParams(p); err == nil {
			t.Error("expected error for Parallelism=0")
		}
	})

	t.Run("TooCostly", func(t *testing.T) {
		for name, mutate := range map[string]func(p *Argon2idParams){
			"Time":        func(p *Argon2idParams) { p.Time = MaxArgon2Time + 1 },
			"Memory":      func(p *Argon2idParams) { p.MemoryKiB = ^uint32(0) },
			"Parallelism": func(p *Argon2idParams) { p.Parallelism = MaxArgon2Parallel + 1 },
		} {
			p := DefaultArgon2idParams()
			mutate(&p)
			if err := ValidateArgon2idParams(p); err == nil {
				t.Errorf("expected error for oversized %s", name)
			}
		}
	})

	t.Run("MaximumAcceptableParams", func(t *testing.T) {
		p := Argon2idParams{
			Time:        MaxArgon2Time,
			MemoryKiB:   MaxArgon2MemoryKiB,
			Parallelism: MaxArgon2Parallel,
			KeyLen:      32,
		}
		if err := ValidateArgon2idParams(p); err != nil {
			t.Errorf("maximum acceptable params should be valid: %v", err)
		}
	})

	t.Run("MinimumAcceptableParams", func(t *testing.T) {
		p := Argon2idParams{
			Time:        MinArgon2Time,
			MemoryKiB:   MinArgon2MemoryKiB,
			Parallelism: MinArgon2Parallel,
			KeyLen:      32,
		}
		if err := ValidateArgon2idParams(p); err != nil {
			t.Errorf("minimum acceptable params should be valid: %v", err)
		}
	})
}
