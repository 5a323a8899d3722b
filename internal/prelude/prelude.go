// Package prelude carries the Wsrb source compiled ahead of every user
// program. It reopens the built-in classes with derived methods: Integer
// helpers (min, max and between? defined in terms of the spaceship
// operator, plus abs, zero?, succ and pred), and the usual list helpers on
// Array. Definitions compile lazily, so a program that never
// calls a prelude method carries none of its code.
package prelude

// Source is parsed as the file "<prelude>" and its class definitions are
// registered before the user's own statements.
const Source = `
class Integer
  def min(other)
    if (self <=> other) == 1 then other else self end
  end
  def max(other)
    if (self <=> other) == -1 then other else self end
  end
  def between?(lo, hi)
    if (self <=> lo) == -1 then
      false
    else
      (hi <=> self) != -1
    end
  end
  def abs()
    if self < 0 then 0 - self else self end
  end
  def zero?()
    self == 0
  end
  def succ()
    self + 1
  end
  def pred()
    self - 1
  end
end

class Array
  def first()
    self[0]
  end
  def last()
    self[self.size() - 1]
  end
  def empty?()
    self.size() == 0
  end
  def include?(x)
    i = 0
    found = false
    while i < self.size()
      if self[i] == x then
        found = true
      end
      i = i + 1
    end
    found
  end
  def index(x)
    i = 0
    r = nil
    while i < self.size()
      if r == nil then
        if self[i] == x then
          r = i
        end
      end
      i = i + 1
    end
    r
  end
  def sum()
    i = 0
    t = 0
    while i < self.size()
      t = t + self[i]
      i = i + 1
    end
    t
  end
end
`
